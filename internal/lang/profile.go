package lang

import "fmt"

// Sentinel markers framing the machine-readable test-result payload. The
// collector tries these first and falls back to line heuristics when the
// harness died before printing them.
const (
	TestResultsStart = "===COMPANION_TEST_RESULTS==="
	TestResultsEnd   = "===END_COMPANION_TEST_RESULTS==="
)

// Profile bundles the language-side snippets the pipeline needs.
type Profile struct {
	Name string

	// FileGuardName is the global consulted before prepending FileGuard.
	FileGuardName string
	// FileGuard defines a script-style current-file marker so snippets
	// that assume file execution do not fail name resolution.
	FileGuard string

	// RedirectPreamble reroutes the runtime's stdout/stderr into
	// in-memory buffers. RestoreStreams undoes it; ReadStdout/ReadStderr
	// evaluate to the captured text.
	RedirectPreamble string
	ReadStdout       string
	ReadStderr       string
	RestoreStreams   string

	// MemorySample evaluates to a JSON object {"used_bytes": n,
	// "peak_bytes": n}. Empty means the runtime cannot report memory.
	MemorySample string

	// ResetState clears the runtime's module cache (sparing core modules)
	// and forces a collection.
	ResetState string

	// SmokeChecks run after package activation; all must succeed before
	// the install is declared good.
	SmokeChecks []string

	// Harness renders the test-harness script for one test file.
	Harness func(fileName, source string) string
}

// Python returns the profile for the Python worker. The snippets replicate
// what the original browser worker injected around user code.
func Python(packageName string) Profile {
	return Profile{
		Name:          "python",
		FileGuardName: "__file__",
		FileGuard: "if '__file__' not in globals():\n" +
			"    __file__ = '<snippet>'\n",
		RedirectPreamble: "import sys, io\n" +
			"__companion_stdout, __companion_stderr = sys.stdout, sys.stderr\n" +
			"sys.stdout, sys.stderr = io.StringIO(), io.StringIO()\n",
		ReadStdout: "sys.stdout.getvalue()",
		ReadStderr: "sys.stderr.getvalue()",
		RestoreStreams: "import sys\n" +
			"if '__companion_stdout' in globals():\n" +
			"    sys.stdout = __companion_stdout\n" +
			"if '__companion_stderr' in globals():\n" +
			"    sys.stderr = __companion_stderr\n",
		MemorySample: "import json, sys, gc\n" +
			"__companion_mem = json.dumps({\n" +
			"    'used_bytes': sys.getallocatedblocks() * 512,\n" +
			"    'peak_bytes': sys.getallocatedblocks() * 512,\n" +
			"    'objects': len(gc.get_objects()),\n" +
			"})\n" +
			"__companion_mem",
		ResetState: "import sys, gc\n" +
			"for __name in list(sys.modules):\n" +
			"    if not __name.startswith(('builtins', 'sys', 'io', '_')):\n" +
			"        del sys.modules[__name]\n" +
			"gc.collect()\n",
		SmokeChecks: []string{
			fmt.Sprintf("import %s", packageName),
			fmt.Sprintf("import %s.chapter_01.dynamic_array", packageName),
			fmt.Sprintf(
				"from %s.chapter_01.dynamic_array import DynamicArray\n"+
					"__arr = DynamicArray()\n"+
					"__arr.append(1)\n"+
					"assert len(__arr) == 1\n", packageName),
		},
		Harness: pythonHarness,
	}
}

// JavaScript returns the profile for the embedded goja runtime.
func JavaScript() Profile {
	return Profile{
		Name:          "javascript",
		FileGuardName: "__filename",
		FileGuard:     "if (typeof __filename === 'undefined') { var __filename = '<snippet>'; }\n",
		RedirectPreamble: "var __out = []; var __errOut = [];\n" +
			"var __origLog = console.log; var __origError = console.error;\n" +
			"console.log = function() { __out.push(Array.prototype.join.call(arguments, ' ')); };\n" +
			"console.error = function() { __errOut.push(Array.prototype.join.call(arguments, ' ')); };\n",
		ReadStdout: "__out.join('\\n')",
		ReadStderr: "__errOut.join('\\n')",
		RestoreStreams: "if (typeof __origLog !== 'undefined') { console.log = __origLog; }\n" +
			"if (typeof __origError !== 'undefined') { console.error = __origError; }\n",
		MemorySample: "",
		ResetState:   "",
		SmokeChecks: []string{
			"if (typeof companion === 'undefined') { throw new Error('companion bundle missing'); }",
		},
		Harness: javascriptHarness,
	}
}

// pythonHarness wraps a unittest run with sentinel-framed JSON output. Per
// outcome it reports name, status, duration, captured output and the
// originating file, matching the collector's Outcome shape.
func pythonHarness(fileName, source string) string {
	return fmt.Sprintf(`import json, time, traceback, unittest, io, sys

__source = %q
__file = %q
__ns = {'__name__': '__companion_test__', '__file__': __file}
__results = []

try:
    exec(compile(__source, __file, 'exec'), __ns)
    __loader = unittest.TestLoader()
    __suite = unittest.TestSuite()
    for __obj in list(__ns.values()):
        if isinstance(__obj, type) and issubclass(__obj, unittest.TestCase):
            __suite.addTests(__loader.loadTestsFromTestCase(__obj))

    class __Collector(unittest.TestResult):
        def startTest(self, test):
            super().startTest(test)
            self._start = time.perf_counter()
            self._buf = io.StringIO()
            self._old = sys.stdout
            sys.stdout = self._buf
        def _finish(self, test, status, err=None):
            sys.stdout = self._old
            __results.append({
                'name': test.id(),
                'status': status,
                'duration_ms': (time.perf_counter() - self._start) * 1000.0,
                'output': self._buf.getvalue(),
                'error': err,
                'file': __file,
            })
        def addSuccess(self, test):
            super().addSuccess(test)
            self._finish(test, 'passed')
        def addFailure(self, test, err):
            super().addFailure(test, err)
            self._finish(test, 'failed', ''.join(traceback.format_exception(*err)))
        def addError(self, test, err):
            super().addError(test, err)
            self._finish(test, 'error', ''.join(traceback.format_exception(*err)))
        def addSkip(self, test, reason):
            super().addSkip(test, reason)
            self._finish(test, 'skipped', reason)

    __suite.run(__Collector())
except Exception:
    __results.append({
        'name': __file,
        'status': 'error',
        'duration_ms': 0.0,
        'output': '',
        'error': traceback.format_exc(),
        'file': __file,
    })

print(%q)
print(json.dumps(__results))
print(%q)
`, source, fileName, TestResultsStart, TestResultsEnd)
}

// javascriptHarness runs test functions the file registers through the
// injected __register(name, fn) helper.
func javascriptHarness(fileName, source string) string {
	return fmt.Sprintf(`var __results = [];
(function() {
    var __tests = {};
    var __register = function(name, fn) { __tests[name] = fn; };
    try {
        eval(%q);
        for (var __name in __tests) {
            var __start = Date.now();
            try {
                __tests[__name]();
                __results.push({ name: __name, status: 'passed', duration_ms: Date.now() - __start, output: '', error: null, file: %q });
            } catch (e) {
                __results.push({ name: __name, status: 'failed', duration_ms: Date.now() - __start, output: '', error: String(e), file: %q });
            }
        }
    } catch (e) {
        __results.push({ name: %q, status: 'error', duration_ms: 0, output: '', error: String(e), file: %q });
    }
})();
console.log(%q);
console.log(JSON.stringify(__results));
console.log(%q);
`, source, fileName, fileName, fileName, fileName, TestResultsStart, TestResultsEnd)
}

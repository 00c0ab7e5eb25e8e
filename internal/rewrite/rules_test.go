package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable_Loads(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	assert.Equal(t, "mastering_performant_code", table.Namespace)
	assert.NotEmpty(t, table.Rules)

	seen := make(map[string]bool)
	for _, r := range table.Rules {
		assert.False(t, seen[r.ID], "duplicate rule id %q", r.ID)
		seen[r.ID] = true
	}
}

func TestLoadTable_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing namespace",
			yaml:    "rules:\n  - id: a\n    pattern: 'x'\n    replacement: 'y'\n    scope: global\n",
			wantErr: "no target namespace",
		},
		{
			name: "duplicate id",
			yaml: "namespace: ns\nrules:\n" +
				"  - id: a\n    pattern: 'x'\n    replacement: 'y'\n    scope: global\n" +
				"  - id: a\n    pattern: 'z'\n    replacement: 'w'\n    scope: global\n",
			wantErr: "duplicate rule id",
		},
		{
			name:    "unknown scope",
			yaml:    "namespace: ns\nrules:\n  - id: a\n    pattern: 'x'\n    replacement: 'y'\n    scope: file\n",
			wantErr: "unknown scope",
		},
		{
			name:    "bad regex",
			yaml:    "namespace: ns\nrules:\n  - id: a\n    pattern: '('\n    replacement: 'y'\n    scope: global\n",
			wantErr: "a",
		},
		{
			name:    "replacement retriggers a rule",
			yaml:    "namespace: ns\nrules:\n  - id: a\n    pattern: 'x'\n    replacement: 'xx'\n    scope: global\n",
			wantErr: "matches pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTable([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTable_Guarded(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	assert.True(t, table.guarded("from mastering_performant_code.chapter_01.analyzer import Analyzer"))
	assert.False(t, table.guarded("from analyzer import Analyzer"))
}

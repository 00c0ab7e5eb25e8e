/*
Package resilience provides a circuit breaker for the interpreter worker
connection.

The execution pipeline talks to an out-of-process worker; when the worker
dies or hangs, every execute request would otherwise burn its full timeout
budget. The breaker fails those requests fast and probes for recovery.

# Usage

	breaker := resilience.New("interpreter-worker", resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	result, err := breaker.Execute(func() (interface{}, error) {
		return client.Call()
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

Closed passes requests through, Open fails them immediately with
ErrCircuitOpen, Half-Open admits a limited number of probes.
*/
package resilience

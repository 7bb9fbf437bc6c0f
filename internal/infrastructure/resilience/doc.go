/*
Package resilience provides a circuit breaker for side effects that must not
be repeated while they keep failing.

The bridge uses it around the local backend launch: a launch command that
fails (missing script, bad path) trips the breaker so reconnect storms do not
spawn the command over and over.

# Usage

	breaker := resilience.New("backend-launch", resilience.Settings{
		Timeout: time.Minute,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	err := breaker.Execute(func() error {
		return cmd.Start()
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open
*/
package resilience

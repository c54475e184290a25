/*
Package resilience keeps unreachable hosts from stalling a conversion.

A page can reference hundreds of assets on the same host. When that host
times out or refuses connections, each of them would cost a full request
timeout. Hosts opens a host after a run of network failures, skips it
while it cools down, then lets a single probe decide:

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[probe ok]-> Closed
	                                              |
	                                        [probe fails]
	                                              v
	                                            Open

Usage:

	hosts := resilience.NewHosts(resilience.Settings{Threshold: 3})
	err := hosts.Do(u.Host, func() error {
		_, err := req.Get(u.String())
		return err
	})
*/
package resilience

/*
Package health provides the liveness-hysteresis primitives shared by every
remote-monitoring path in the runtime.

A Monitor heartbeats one remote on an interval via a Prober and reports
consecutive results through a Status, which tracks consecutive
successes/failures against a Config's Retries threshold before flipping
healthy/unhealthy. Once a watched remote is declared down, onDown fires
exactly once and the Monitor stops; a clean disconnect stops it via Stop
without firing onDown.

On the dialing side, Connect's handshake starts a Monitor for each
accepted remote; on the accepting side, cmd/skitter starts one from the
transport handler's OnAccepted hook. Both heartbeat through
transport.Client's Heartbeat RPC.
*/
package health

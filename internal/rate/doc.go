// Package rate throttles login and registration attempts with fixed-window
// Redis counters (INCR, then EXPIRE on the first hit in the window).
//
// Key layout under the configured prefix:
//   - <prefix>:rl:u:<identifier>  failed logins per identifier
//   - <prefix>:rl:ip:<ip>         failed logins per client IP
//   - <prefix>:rr:<ip>            registrations per client IP
package rate

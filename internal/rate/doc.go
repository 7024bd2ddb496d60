// Package rate implements Redis fixed-window throttling for logins and
// refreshes.
//
// A window is INCR plus EXPIRE on the first hit. Keys, under a
// configurable prefix:
//   - <prefix>:l:<email>  failed logins per email
//   - <prefix>:li:<ip>    failed logins per client address
//   - <prefix>:r:<owner>  refresh attempts per owner
package rate

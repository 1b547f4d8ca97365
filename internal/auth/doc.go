// Package auth provides optional API-key authentication for the HTTP
// query surface. With mode "none" (or no key configured) every request
// passes through untouched.
package auth

// Package pacconf provides a line-preserving model of the pacman.conf
// configuration format: ordered sections of key/value directives where
// line order is semantically meaningful (later directives override earlier
// ones). Parsing retains comments and blank lines byte-for-byte so that
// rendering an unmodified document reproduces the input exactly.
package pacconf

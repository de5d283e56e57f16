// Package builtin provides the function registry backing ${func(args)}
// references in test case files.
//
// Available functions:
//   - uuid(), uuid4(): random UUID v4
//   - timestamp(): current Unix timestamp in seconds
//   - timestamp_ms(): current Unix timestamp in milliseconds
//   - now(): current UTC time in RFC 3339 form
//   - date(layout): current UTC date, default layout 2006-01-02
//   - random(min, max): random integer in the inclusive range
//   - random_str(length): random alphanumeric string
//   - choice(a, b, ...): one of the arguments at random
//   - base64(value), base64_decode(value)
//   - md5(value), sha256(value)
//   - url_encode(value), url_decode(value)
//   - env(name): environment variable value
package builtin

// Package http executes request steps: it builds requests from
// rendered step payloads, sends them through a tuned shared transport,
// and normalizes responses for extraction and validation. Transport
// failures come back as leaf errors classified as network or timeout.
package http

// Package proxy is the gateway's HTTP surface: the Messages API endpoint
// with its provider dispatch, the OAuth login pages, and the status and
// metrics endpoints.
package proxy

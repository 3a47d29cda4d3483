// Package log provides a masking slog handler for crawl logging.
//
// The crawler routinely logs request and response headers; sites under
// archive may hand out session cookies or require Authorization headers
// supplied through the policy file. MaskingHandler redacts those attribute
// values so credentials never end up in log output, while leaving everything
// else untouched.
package log

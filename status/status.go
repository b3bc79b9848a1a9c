/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package status holds the HTTP status code set recognized by the
// connection engine's HTTP and FastCGI processors.
package status

import "strconv"

// Unknown is the sentinel value for "no status set yet".
const Unknown = -1

var text = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	102: "Processing",

	200: "OK",
	201: "Created",
	202: "Accepted",
	203: "Non-Authoritative Information",
	204: "No Content",
	205: "Reset Content",
	206: "Partial Content",
	207: "Multi-Status",

	300: "Multiple Choices",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	305: "Use Proxy",
	307: "Temporary Redirect",

	400: "Bad Request",
	401: "Unauthorized",
	402: "Payment Required",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	406: "Not Acceptable",
	407: "Proxy Authentication Required",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	412: "Precondition Failed",
	413: "Request Entity Too Large",
	414: "Request-URI Too Long",
	415: "Unsupported Media Type",
	416: "Requested Range Not Satisfiable",
	417: "Expectation Failed",
	419: "Authentication Timeout",
	420: "Enhance Your Calm",
	422: "Unprocessable Entity",
	424: "Failed Dependency",
	428: "Precondition Required",
	429: "Too Many Requests",
	431: "Request Header Fields Too Large",

	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
	505: "HTTP Version Not Supported",
	507: "Insufficient Storage",
	511: "Network Authentication Required",
}

// Text returns the reason phrase for code, or "" if code is not part of the
// recognized set.
func Text(code int) string {
	return text[code]
}

// Valid reports whether code is part of the recognized set.
func Valid(code int) bool {
	_, ok := text[code]
	return ok
}

// Line formats the status line tail (code plus reason phrase) as it appears
// after "HTTP/1.1 " in a response, e.g. "200 OK". Unrecognized codes still
// format with an empty reason phrase rather than failing, since a processor
// may be asked to relay a code it doesn't have a name for.
func Line(code int) string {
	if code == Unknown {
		return ""
	}
	reason := text[code]
	if reason == "" {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code) + " " + reason
}

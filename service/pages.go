package service

import (
	"io"
	"net/http"
	"strings"
)

const loginPage = `<body><div style="background: #4cccdd; width: 60%; padding: 50px; margin-bottom: 10px;">Login</div>` +
	`<form action="welcome" method="GET">Username: <input type="text" name="username" />` +
	`<input type="submit" />` +
	`</form>` +
	`</body>`

// Fallback answers requests a breaker diverted away from the upstream.
func Fallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	io.WriteString(w, "fallback")
}

func Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	io.WriteString(w, loginPage)
}

// Welcome greets the user named by the username parameter.
//
// The username is written into the page verbatim. This is a known reflected
// XSS hole kept on purpose: the page exists to demonstrate it.
func Welcome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	// repeated parameters are joined with commas
	values, ok := r.URL.Query()["username"]
	if !ok {
		err := &paramError{name: "username", kind: "String", err: errMissingParam}
		WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	io.WriteString(w, `<body><div style="background: #cccccc; width: 60%; padding: 50px;">Welcome `+
		`<div style="color: #cc4499;"> `+strings.Join(values, ",")+`</div>`+
		`</div>`+
		`</body>`)
}

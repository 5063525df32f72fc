package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gatewaydemo/logger"
)

// ProbePath is the mock geolocation service's probe endpoint.
const ProbePath = "/svc/P107_PROXY_ToPo/restadapter/sender/azuraapi/i800/704/v2/probeobjectwithinrange/probeobjectwithinrangerequest"

// MessageIDHeader is set on the simulated internal error. The name is sent
// exactly as written.
const MessageIDHeader = "POMESSAGEID"

const (
	simulatedMessageID = "44625"
	simulatedErrorSize = 10
	objectRange        = 10
)

// ProbeRequest holds the probe's query parameters.
type ProbeRequest struct {
	Easting  float64
	Northing float64
	SRID     int
}

type ProbeResponse struct {
	Success      string `json:"success,omitempty"`
	ObjectFound  string `json:"objectFound,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ParseProbeRequest reads all three parameters. Every parameter is required.
func ParseProbeRequest(q url.Values) (ProbeRequest, error) {
	var (
		req ProbeRequest
		err error
	)
	if req.Easting, err = floatParam(q, "Easting"); err != nil {
		return req, err
	}
	if req.Northing, err = floatParam(q, "Northing"); err != nil {
		return req, err
	}
	if req.SRID, err = intParam(q, "SpatialReferenceSystemIdentifier"); err != nil {
		return req, err
	}
	return req, nil
}

func rawParam(q url.Values, name, kind string) (string, error) {
	v, ok := q[name]
	if !ok || strings.TrimSpace(v[0]) == "" {
		return "", &paramError{name: name, kind: kind, err: errMissingParam}
	}
	return strings.TrimSpace(v[0]), nil
}

func floatParam(q url.Values, name string) (float64, error) {
	s, err := rawParam(q, name, "Double")
	if err != nil {
		return 0, err
	}
	// out-of-range values bind as ±Inf or 0 rather than failing
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, &paramError{name: name, kind: "Double", err: errBadParam}
	}
	return f, nil
}

func intParam(q url.Values, name string) (int, error) {
	s, err := rawParam(q, name, "Integer")
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, &paramError{name: name, kind: "Integer", err: errBadParam}
	}
	return int(n), nil
}

// Evaluate picks the simulated answer for req.
func Evaluate(req ProbeRequest) (status int, resp ProbeResponse) {
	switch req.SRID {
	case 0:
		return http.StatusNotFound, resp
	case 1:
		return http.StatusInternalServerError, resp
	}

	switch {
	case req.Easting == 0 && req.Northing == 0:
		resp.ErrorMessage = "Spatial geolocation service unavailable. Please try again."
	case req.Easting <= objectRange && req.Northing <= objectRange:
		resp.Success, resp.ObjectFound = "true", "true"
	default:
		resp.Success, resp.ObjectFound = "true", "false"
	}
	return http.StatusOK, resp
}

// Probe simulates the downstream geolocation service. SRID 0 and 1 are
// deliberate failures.
func Probe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, r)
		return
	}

	req, err := ParseProbeRequest(r.URL.Query())
	if err != nil {
		var pe *paramError
		if errors.As(err, &pe) {
			logger.Debug("Probe rejected", "param", pe.name, "err", err)
		}
		WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	status, resp := Evaluate(req)
	switch status {
	case http.StatusNotFound:
		WriteError(w, r, http.StatusNotFound, "Resource not found")
		return
	case http.StatusInternalServerError:
		w.Header()[MessageIDHeader] = []string{simulatedMessageID}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(make([]byte, simulatedErrorSize))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("Probe response not written", "err", err)
	}
}

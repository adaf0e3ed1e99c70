package trace

import (
	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(errors.Wrap(err, "trace: failed to create CBOR enc mode"))
	}
	cborEncMode = em
}

// Report is the wire form of a Result, suitable for collecting results from many replays
type Report struct {
	Calls    int             `cbor:"1,keyasint"`
	Peak     int             `cbor:"2,keyasint"`
	Failures []ReportFailure `cbor:"3,keyasint,omitempty"`
	Leaks    []ReportLeak    `cbor:"4,keyasint,omitempty"`
}

type ReportFailure struct {
	Line  int    `cbor:"1,keyasint"`
	Call  string `cbor:"2,keyasint"`
	Error string `cbor:"3,keyasint"`
}

type ReportLeak struct {
	Name    string `cbor:"1,keyasint"`
	Address uint64 `cbor:"2,keyasint"`
	Size    int    `cbor:"3,keyasint"`
}

// Report converts the result into its wire form
func (r *Result) Report() *Report {
	report := &Report{
		Calls: r.Calls,
		Peak:  r.Peak,
	}

	for _, failure := range r.Failures {
		report.Failures = append(report.Failures, ReportFailure{
			Line:  failure.Op.Line,
			Call:  failure.Op.String(),
			Error: failure.Code.String(),
		})
	}

	for _, leak := range r.Leaks {
		report.Leaks = append(report.Leaks, ReportLeak{
			Name:    leak.Name,
			Address: uint64(leak.Address),
			Size:    leak.Size,
		})
	}

	return report
}

// MarshalReport serializes a Report to canonical CBOR bytes
func MarshalReport(r *Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalReport deserializes a Report from CBOR bytes
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "trace: unmarshal report")
	}
	return &r, nil
}

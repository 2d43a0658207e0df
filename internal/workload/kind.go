// Package workload builds and runs the benchmark and parses its output
// into throughput, execution time and the execution window.
package workload

import "fmt"

// Kind is a supported benchmark. Each kind fixes the prefix of its result
// line and the columns holding execution time and throughput.
type Kind string

const (
	HPLAI Kind = "hplai"
	HPL   Kind = "hpl"
)

type layout struct {
	resultPrefix string
	execColumn   int
	gflopsColumn int
}

var layouts = map[Kind]layout{
	HPLAI: {resultPrefix: "HPL_AI", execColumn: 6, gflopsColumn: 7},
	HPL:   {resultPrefix: "WR03L2L2", execColumn: 5, gflopsColumn: 6},
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := layouts[k]; !ok {
		return "", fmt.Errorf("unknown workload: %q (valid: hplai, hpl)", s)
	}
	return k, nil
}

func (k Kind) String() string {
	return string(k)
}

// ResultPrefix is the start of the line that carries the final result.
func (k Kind) ResultPrefix() string {
	return layouts[k].resultPrefix
}

package workload

import (
	"path/filepath"
	"testing"

	"github.com/haskel/codvfs/internal/config"
)

func TestCommandBuilder(t *testing.T) {
	out := t.TempDir()
	abs, _ := filepath.Abs(out)
	apps := config.Default().Workload.Apps

	tests := []struct {
		name    string
		cfg     config.WorkloadConfig
		kind    Kind
		want    string
		wantErr bool
	}{
		{
			name: "hplai in docker with mount",
			cfg:  config.WorkloadConfig{Docker: true, MountOutput: true, Apps: apps},
			kind: HPLAI,
			want: "docker run --rm --gpus all -v " + abs + ":/out " + apps["hplai"].Image + " /opt/nvidia/hpl_mxp/xhpl_mxp -n 1024 -b 128",
		},
		{
			name: "hpl in docker without mount",
			cfg:  config.WorkloadConfig{Docker: true, Apps: apps},
			kind: HPL,
			want: "docker run --rm --gpus all " + apps["hpl"].Image + " /opt/nvidia/hpl/xhpl -n 1024 -b 128",
		},
		{
			name: "bare metal",
			cfg:  config.WorkloadConfig{Apps: map[string]config.AppSpec{"hpl": {Binary: "./xhpl"}}},
			kind: HPL,
			want: "./xhpl -n 1024 -b 128",
		},
		{
			name: "template",
			cfg:  config.WorkloadConfig{Docker: true, Apps: map[string]config.AppSpec{"hpl": {Command: "mpirun -np 1 ./xhpl {N} {NB}"}}},
			kind: HPL,
			want: "mpirun -np 1 ./xhpl 1024 128",
		},
		{
			name:    "not configured",
			cfg:     config.WorkloadConfig{},
			kind:    HPLAI,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewCommandBuilder(tt.cfg, out)
			if err != nil {
				t.Fatal(err)
			}
			got, err := b.Command(tt.kind, 1024, 128)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Command() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Command() = %q, want %q", got, tt.want)
			}
		})
	}
}

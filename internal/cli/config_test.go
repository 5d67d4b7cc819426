package cli_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextstrain/auspice/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Verbosity int
	View      struct {
		DatasetDir  string
		ReadTimeout time.Duration
		Extra       []string
	}
}

func TestInitViperConfig(t *testing.T) {
	tests := map[string]struct {
		fileContent string
		noFile      bool
		env         map[string]string

		want    testConfig
		wantErr bool
	}{
		"Config file is read": {
			fileContent: "verbosity: 2\nview:\n  datasetdir: /data\n  readtimeout: 3s\n",
			want: func() (c testConfig) {
				c.Verbosity = 2
				c.View.DatasetDir = "/data"
				c.View.ReadTimeout = 3 * time.Second
				return c
			}(),
		},
		"Env overrides config file": {
			fileContent: "view:\n  datasetdir: /data\n",
			env:         map[string]string{"AUSPICE_VIEW_DATASETDIR": "/other"},
			want: func() (c testConfig) {
				c.View.DatasetDir = "/other"
				return c
			}(),
		},
		"Comma separated lists are split": {
			fileContent: "view:\n  extra: a,b\n",
			want: func() (c testConfig) {
				c.View.Extra = []string{"a", "b"}
				return c
			}(),
		},

		"Error on invalid config file": {fileContent: "view: [", wantErr: true},
		"Error on missing explicit config file": {noFile: true, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			p := filepath.Join(t.TempDir(), "auspice.yaml")
			if !tc.noFile {
				require.NoError(t, os.WriteFile(p, []byte(tc.fileContent), 0600), "Setup: could not write config file")
			}

			cmd := &cobra.Command{Use: "auspice"}
			cli.InstallConfigFlag(cmd)
			require.NoError(t, cmd.PersistentFlags().Set("config", p), "Setup: could not set config flag")

			vip := viper.New()
			err := cli.InitViperConfig("auspice", cmd, vip)
			if tc.wantErr {
				require.Error(t, err, "InitViperConfig should fail")
				return
			}
			require.NoError(t, err, "InitViperConfig should not fail")

			var got testConfig
			require.NoError(t, cli.Unmarshal(vip, &got), "Unmarshal should not fail")
			assert.Equal(t, tc.want, got, "Decoded configuration does not match")
		})
	}
}

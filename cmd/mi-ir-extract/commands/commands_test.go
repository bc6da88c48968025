package commands_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/miremote/mi-ir-extract/cmd/mi-ir-extract/commands"
	"github.com/miremote/mi-ir-extract/internal/constants"
	"github.com/miremote/mi-ir-extract/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

var brandsDir = filepath.Join("testdata", "brands")

const wantTotal = "TOTAL: 5 documents, 6 patterns"

func TestRootFlags(t *testing.T) {
	t.Parallel()

	app, err := commands.New()
	require.NoError(t, err, "Setup: could not create app")
	rootCmd := app.RootCmd()

	tests := []testutils.CmdTestCase{
		{Name: "verbose", Short: "v", Default: "0", PersistentFlag: true},
		{Name: "json-logs", Default: "false", PersistentFlag: true},
		{Name: "workers", Default: fmt.Sprint(runtime.NumCPU()), PersistentFlag: true},
		{Name: "decrypt-key", PersistentFlag: true},
		{Name: "config", PersistentFlag: true},
	}
	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			tc.BaseCmd = &rootCmd
			testutils.FlagTestHelper(t, tc)
		})
	}
}

func TestSubcommandFlags(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		cmd   string
		flags []testutils.CmdTestCase
	}{
		"process": {cmd: "process", flags: []testutils.CmdTestCase{
			{Name: "report-format", Short: "f", Default: "text"},
			{Name: "output", Short: "o"},
		}},
		"export": {cmd: "export", flags: []testutils.CmdTestCase{
			{Name: "format", Short: "f", Default: "flipper"},
			{Name: "output", Short: "o"},
			{Name: "keysets", Dirname: true},
			{Name: "buttons", Default: "[power,shutter]"},
		}},
		"watch": {cmd: "watch", flags: []testutils.CmdTestCase{
			{Name: "metrics-host"},
			{Name: "metrics-port", Default: "0"},
			{Name: "debounce", Default: "2s"},
		}},
		"pronto": {cmd: "pronto", flags: []testutils.CmdTestCase{
			{Name: "name", Short: "n"},
		}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			app, err := commands.New()
			require.NoError(t, err, "Setup: could not create app")
			rootCmd := app.RootCmd()

			cmd, _, err := rootCmd.Find([]string{tc.cmd})
			require.NoError(t, err, "Setup: could not find %s command", tc.cmd)

			for _, f := range tc.flags {
				f.BaseCmd = cmd
				testutils.FlagTestHelper(t, f)
			}
		})
	}
}

func TestProcess(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		args   []string
		decode func([]byte, any) error

		wantErr      bool
		wantUsageErr bool
	}{
		"Text report":                       {args: []string{"process", brandsDir}},
		"Text report with one worker":       {args: []string{"process", brandsDir, "--workers", "1"}},
		"JSON report":                       {args: []string{"process", brandsDir, "-f", "json"}, decode: json.Unmarshal},
		"YAML report":                       {args: []string{"process", brandsDir, "--report-format", "yaml"}, decode: yaml.Unmarshal},
		"TOML report":                       {args: []string{"process", brandsDir, "-f", "toml"}, decode: toml.Unmarshal},
		"Format is case insensitive":        {args: []string{"process", brandsDir, "-f", "JSON"}, decode: json.Unmarshal},
		"Verbose logging does not break it": {args: []string{"process", brandsDir, "-vv", "--json-logs"}},

		"Error on unknown format":        {args: []string{"process", brandsDir, "-f", "xml"}, wantErr: true, wantUsageErr: true},
		"Error on missing directory arg": {args: []string{"process"}, wantErr: true, wantUsageErr: true},
		"Error on too many args":         {args: []string{"process", brandsDir, brandsDir}, wantErr: true, wantUsageErr: true},
		"Error on unknown flag":          {args: []string{"process", brandsDir, "--unknown"}, wantErr: true, wantUsageErr: true},
		"Error on missing directory":     {args: []string{"process", "does-not-exist"}, wantErr: true},
		"Error on invalid decrypt key":   {args: []string{"process", brandsDir, "--decrypt-key", "zz"}, wantErr: true, wantUsageErr: true},
		"Error on short decrypt key":     {args: []string{"process", brandsDir, "--decrypt-key", "0011"}, wantErr: true, wantUsageErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			app := commands.NewForTests(t, tc.args...)
			out := app.SetOutput(t)

			err := app.Run()
			assert.Equal(t, tc.wantUsageErr, app.UsageError(), "Unexpected usage error state")
			if tc.wantErr {
				require.Error(t, err, "Run should fail")
				return
			}
			require.NoError(t, err, "Run should not fail")

			got := out.String()
			if tc.decode == nil {
				assert.Contains(t, got, wantTotal, "Text report should carry the totals")
				assert.Contains(t, got, "40_missing_data: failed:", "Text report should list failed documents")
				return
			}

			var r map[string]any
			require.NoError(t, tc.decode([]byte(got), &r), "Report should be decodable")
			assert.EqualValues(t, 6, r["total_patterns"], "Unexpected total patterns")
			assert.EqualValues(t, 5, r["total_documents"], "Unexpected total documents")
			assert.EqualValues(t, 1, r["total_failed"], "Unexpected total failures")
		})
	}
}

func TestProcessToFile(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "report.txt")
	app := commands.NewForTests(t, "process", brandsDir, "-o", output)
	out := app.SetOutput(t)

	require.NoError(t, app.Run(), "Run should not fail")
	assert.Empty(t, out.String(), "Nothing should be printed when writing to a file")

	got, err := os.ReadFile(output)
	require.NoError(t, err, "Report file should be written")
	assert.Contains(t, string(got), wantTotal, "Report file should carry the totals")
}

func TestExport(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		format         string
		args           []string
		readOnlyOutput bool

		wantErr      bool
		wantUsageErr bool
	}{
		"Flipper":                          {format: "flipper"},
		"Flipper with explicit keysets":    {format: "flipper", args: []string{"--keysets", filepath.Join(brandsDir, constants.KeysetFolder)}},
		"Flipper with missing keysets":     {format: "flipper", args: []string{"--keysets", "does-not-exist"}},
		"TV-Kill":                          {format: "tvkill"},
		"TV-Kill with requested buttons":   {format: "tvkill", args: []string{"--buttons", "vol+,mute"}},
		"MessagePack":                      {format: "msgpack"},
		"Format is case insensitive":       {format: "MsgPack"},
		"Error on unknown format":          {format: "lirc", wantErr: true, wantUsageErr: true},
		"Error on missing brand directory": {format: "tvkill", wantErr: true},
		"Error on read only output":        {format: "msgpack", readOnlyOutput: true, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := brandsDir
			if strings.Contains(name, "missing brand") {
				dir = "does-not-exist"
			}

			parent := t.TempDir()
			output := filepath.Join(parent, "out")
			if tc.readOnlyOutput {
				if !testutils.IsUnixNonRoot() {
					t.Skip("Permissions are only enforced for non root users on Unix")
				}
				require.NoError(t, os.Chmod(parent, 0500), "Setup: could not make output directory read only")
				// #nosec G302 // parent is a directory and needs its execute bit
				t.Cleanup(func() { assert.NoError(t, os.Chmod(parent, 0700), "Cleanup: could not restore output directory perms") })
			}
			args := append([]string{"export", dir, "-f", tc.format, "-o", output}, tc.args...)
			app := commands.NewForTests(t, args...)
			app.SetOutput(t)

			err := app.Run()
			assert.Equal(t, tc.wantUsageErr, app.UsageError(), "Unexpected usage error state")
			if tc.wantErr {
				require.Error(t, err, "Run should fail")
				return
			}
			require.NoError(t, err, "Run should not fail")

			switch strings.ToLower(tc.format) {
			case "flipper":
				got, err := os.ReadFile(filepath.Join(output, "18_xiaomi_0.ir"))
				require.NoError(t, err, "Flipper file of the first model should be written")
				assert.True(t, strings.HasPrefix(string(got), "Filetype: IR signals file\nVersion: 1\n"), "Flipper file should start with its header")
				assert.Contains(t, string(got), "name: power_r", "Reverse signals should be exported")
				if strings.Contains(name, "missing keysets") {
					assert.NotContains(t, string(got), "name: mute", "Keyset patterns should not be appended")
				} else {
					assert.Contains(t, string(got), "name: mute", "Keyset patterns should be appended")
				}
			case "tvkill":
				data, err := os.ReadFile(output)
				require.NoError(t, err, "TV-Kill file should be written")
				var got []struct {
					Designation string `json:"designation"`
					Patterns    []any  `json:"patterns"`
				}
				require.NoError(t, json.Unmarshal(data, &got), "TV-Kill file should be valid JSON")
				require.Len(t, got, 1, "TV-Kill file should hold one designation")
				assert.Equal(t, "out", got[0].Designation, "Designation should be the output file name")
				assert.NotEmpty(t, got[0].Patterns, "TV-Kill file should hold patterns")
			case "msgpack":
				data, err := os.ReadFile(output)
				require.NoError(t, err, "MessagePack file should be written")
				var got map[string][]map[string]any
				require.NoError(t, msgpack.Unmarshal(data, &got), "MessagePack file should decode")
				assert.Len(t, got, 5, "Every document should be dumped")
			}
		})
	}
}

func TestConfiguration(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		config string
		args   []string

		wantWorkers    int
		wantDecryptKey string
		wantErr        bool
	}{
		"Configuration file sets workers": {
			config: "workers: 3\n", wantWorkers: 3,
		},
		"Configuration file sets the decryption key": {
			config: "decrypt-key: 33526c385978306d5071365662324e63\n", wantWorkers: runtime.NumCPU(),
			wantDecryptKey: "33526c385978306d5071365662324e63",
		},
		"Flags override configuration file": {
			config: "workers: 3\n", args: []string{"--workers", "5"}, wantWorkers: 5,
		},
		"Error on invalid configuration file": {
			config: "workers: [\n", wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), constants.CmdName+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.config), 0600), "Setup: could not write configuration file")

			app := commands.NewForTests(t, append([]string{"version", "--config", path}, tc.args...)...)
			app.SetOutput(t)

			err := app.Run()
			if tc.wantErr {
				require.Error(t, err, "Run should fail on an invalid configuration")
				return
			}
			require.NoError(t, err, "Run should not fail")

			assert.Equal(t, tc.wantWorkers, app.Workers(), "Unexpected number of workers")
			assert.Equal(t, tc.wantDecryptKey, app.DecryptKey(), "Unexpected decryption key")
		})
	}
}

func TestConfiguredKeyIsUsed(t *testing.T) {
	t.Parallel()

	// The built-in key spelled out in hexadecimal.
	path := filepath.Join(t.TempDir(), constants.CmdName+".toml")
	require.NoError(t, os.WriteFile(path, []byte(`decrypt-key = "33526c385978306d5071365662324e63"`+"\n"), 0600), "Setup: could not write configuration file")

	app := commands.NewForTests(t, "process", brandsDir, "--config", path)
	out := app.SetOutput(t)

	require.NoError(t, app.Run(), "Run should not fail")
	assert.Contains(t, out.String(), wantTotal, "The same key should give the same patterns")
}

func TestPronto(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		args []string

		want         string
		wantErr      bool
		wantUsageErr bool
	}{
		"Single argument code": {
			args: []string{"pronto", "0000 006D 0001 0000 0001 0001"},
			want: "name: unknown\ntype: raw\nfrequency: 38029\nduty_cycle: 0.330000\ndata: 26 26\n",
		},
		"Split code with a name": {
			args: []string{"pronto", "-n", "power", "0000", "006D", "0001", "0000", "0001", "0001"},
			want: "name: power\ntype: raw\nfrequency: 38029\nduty_cycle: 0.330000\ndata: 26 26\n",
		},

		"Error on missing code":          {args: []string{"pronto"}, wantErr: true, wantUsageErr: true},
		"Error on invalid word":          {args: []string{"pronto", "0000 006D 0001 0000 0001 XYZ"}, wantErr: true, wantUsageErr: true},
		"Error on wrong number of words": {args: []string{"pronto", "0000 006D 0002 0000 0001 0001"}, wantErr: true, wantUsageErr: true},
		"Error on unsupported format":    {args: []string{"pronto", "0100 006D 0001 0000 0001 0001"}, wantErr: true, wantUsageErr: true},
		"Error on zero frequency code":   {args: []string{"pronto", "0000 0000 0001 0000 0001 0001"}, wantErr: true, wantUsageErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			app := commands.NewForTests(t, tc.args...)
			out := app.SetOutput(t)

			err := app.Run()
			assert.Equal(t, tc.wantUsageErr, app.UsageError(), "Unexpected usage error state")
			if tc.wantErr {
				require.Error(t, err, "Run should fail")
				return
			}
			require.NoError(t, err, "Run should not fail")
			require.Equal(t, tc.want, out.String(), "Unexpected flipper signal")
		})
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	app := commands.NewForTests(t, "version")
	out := app.SetOutput(t)

	require.NoError(t, app.Run(), "Run should not fail")
	assert.Equal(t, constants.CmdName+"\t"+constants.Version+"\n", out.String(), "Unexpected version output")

	app = commands.NewForTests(t, "version", "extra")
	app.SetOutput(t)
	require.Error(t, app.Run(), "Version should not accept arguments")
	assert.True(t, app.UsageError(), "Extra arguments should be a usage error")
}

func TestUsageError(t *testing.T) {
	t.Parallel()

	app := commands.NewForTests(t, "unknown-command")
	app.SetOutput(t)

	require.Error(t, app.Run(), "Run should fail on an unknown command")
	assert.True(t, app.UsageError(), "An unknown command should be a usage error")
}

func TestWatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, testutils.CopyDir(t, brandsDir, dir), "Setup: could not copy brand dumps")

	port := testutils.GetFreePort(t, "127.0.0.1")
	app := commands.NewForTests(t, "watch", dir, "--debounce", "50ms", "--metrics-host", "127.0.0.1", "--metrics-port", fmt.Sprint(port))
	out := app.SetOutput(t)

	done := make(chan error, 1)
	go func() { done <- app.Run() }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), wantTotal)
	}, 5*time.Second, 20*time.Millisecond, "Initial report should be printed")

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return err == nil && strings.Contains(string(body), "mi_ir_extract_patterns_total 6")
	}, 5*time.Second, 50*time.Millisecond, "Metrics should expose the processed patterns")

	require.NoError(t, os.Remove(filepath.Join(dir, "97_sony.json")), "Setup: could not remove a brand dump")
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "TOTAL: 4 documents, 4 patterns")
	}, 5*time.Second, 20*time.Millisecond, "A change should trigger a new report")

	app.Quit()
	select {
	case err := <-done:
		require.NoError(t, err, "Watch should stop without error when quitting")
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after quitting")
	}
	assert.False(t, testutils.PortOpen(t, "127.0.0.1", port), "Metrics endpoint should be closed after quitting")
}

func TestWatchErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		args []string

		wantUsageErr bool
	}{
		"Error on missing directory":   {args: []string{"watch", "does-not-exist", "--debounce", "10ms"}},
		"Error on invalid decrypt key": {args: []string{"watch", brandsDir, "--decrypt-key", "zz"}, wantUsageErr: true},
		"Error on invalid debounce":    {args: []string{"watch", brandsDir, "--debounce", "soon"}, wantUsageErr: true},
		"Error on missing argument":    {args: []string{"watch"}, wantUsageErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			app := commands.NewForTests(t, tc.args...)
			app.SetOutput(t)

			require.Error(t, app.Run(), "Run should fail")
			assert.Equal(t, tc.wantUsageErr, app.UsageError(), "Unexpected usage error state")
		})
	}
}

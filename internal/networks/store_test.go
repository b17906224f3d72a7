package networks

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStore(t *testing.T, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "networks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return NewStore(path, WithEnv(noEnv))
}

func readStore(t *testing.T, s *Store) string {
	t.Helper()
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	return string(data)
}

func TestRecordDeploymentInsertsMissingKey(t *testing.T) {
	s := writeStore(t, testDocument)

	require.NoError(t, s.RecordDeployment("SN_SEPOLIA", "0xABC"))

	want := testDocument + "    gateway_contract: \"0xABC\"\n"
	assert.Equal(t, want, readStore(t, s))

	reg, err := s.Load()
	require.NoError(t, err)
	n, err := reg.Resolve("SN_SEPOLIA")
	require.NoError(t, err)
	assert.Equal(t, "0xABC", n.GatewayContract)
}

func TestRecordDeploymentReplacesExistingValue(t *testing.T) {
	s := writeStore(t, testDocument)

	require.NoError(t, s.RecordDeployment("SN_MAIN", "0x123"))

	want := strings.Replace(testDocument,
		`gateway_contract: "0x06ff3a3b1532da65594fc98f9ca7200af6c3dbaf37e7339b0ebd3b3f2390c583"`,
		`gateway_contract: "0x123"`, 1)
	assert.Equal(t, want, readStore(t, s))
}

func TestRecordDeploymentIsIdempotent(t *testing.T) {
	s := writeStore(t, testDocument)

	require.NoError(t, s.RecordDeployment("SN_SEPOLIA", "0xABC"))
	first := readStore(t, s)

	require.NoError(t, s.RecordDeployment("SN_SEPOLIA", "0xABC"))
	assert.Equal(t, first, readStore(t, s))
}

func TestRecordDeploymentLeavesOtherNetworksUntouched(t *testing.T) {
	s := writeStore(t, string(DefaultDocument()))

	before, err := s.Load()
	require.NoError(t, err)

	require.NoError(t, s.RecordDeployment("SN_SEPOLIA", "0xABC"))

	after, err := s.Load()
	require.NoError(t, err)

	mainBefore, err := before.Resolve("SN_MAIN")
	require.NoError(t, err)
	mainAfter, err := after.Resolve("SN_MAIN")
	require.NoError(t, err)
	assert.Equal(t, mainBefore, mainAfter)

	// Everything up to the end of the SN_SEPOLIA block is byte-identical.
	content := readStore(t, s)
	assert.True(t, strings.HasPrefix(content, string(DefaultDocument())))
	assert.Equal(t, 1, strings.Count(content, `gateway_contract: "0xABC"`))
	assert.Contains(t, content, "# Starknet Sepolia, chain id SN_SEPOLIA")
}

func TestRecordDeploymentValueForms(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{
			name:  "plain",
			value: "    gateway_contract: 0x1\n",
			want:  "    gateway_contract: \"0xabc\"\n",
		},
		{
			name:  "plain with comment",
			value: "    gateway_contract: 0x1 # old\n",
			want:  "    gateway_contract: \"0xabc\" # old\n",
		},
		{
			name:  "single quoted",
			value: "    gateway_contract: '0x1'\n",
			want:  "    gateway_contract: \"0xabc\"\n",
		},
		{
			name:  "empty",
			value: "    gateway_contract:\n",
			want:  "    gateway_contract: \"0xabc\"\n",
		},
		{
			name:  "empty with comment",
			value: "    gateway_contract: # set by deploy\n",
			want:  "    gateway_contract: \"0xabc\" # set by deploy\n",
		},
		{
			name:  "empty string",
			value: "    gateway_contract: \"\"\n",
			want:  "    gateway_contract: \"0xabc\"\n",
		},
	}

	const head = "networks:\n  SN_MAIN:\n    explorer_url: https://starkscan.co\n"
	const tail = "  SN_SEPOLIA:\n    explorer_url: https://sepolia.starkscan.co\n"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := writeStore(t, head+tt.value+tail)
			require.NoError(t, s.RecordDeployment("SN_MAIN", "0xabc"))
			assert.Equal(t, head+tt.want+tail, readStore(t, s))
		})
	}
}

func TestRecordDeploymentKeepsLineEndings(t *testing.T) {
	doc := "networks:\r\n  SN_MAIN:\r\n    explorer_url: https://starkscan.co\r\n"
	s := writeStore(t, doc)

	require.NoError(t, s.RecordDeployment("SN_MAIN", "0xabc"))
	assert.Equal(t, doc+"    gateway_contract: \"0xabc\"\r\n", readStore(t, s))
}

func TestRecordDeploymentWithoutTrailingNewline(t *testing.T) {
	doc := "networks:\n  SN_MAIN:\n    explorer_url: https://starkscan.co"
	s := writeStore(t, doc)

	require.NoError(t, s.RecordDeployment("SN_MAIN", "0xabc"))
	assert.Equal(t, doc+"\n    gateway_contract: \"0xabc\"", readStore(t, s))
}

func TestRecordDeploymentUnknownNetwork(t *testing.T) {
	s := writeStore(t, testDocument)

	err := s.RecordDeployment("UNKNOWN", "0xabc")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
	assert.Equal(t, testDocument, readStore(t, s))
}

func TestRecordDeploymentRejectsBadAddress(t *testing.T) {
	s := writeStore(t, testDocument)

	require.Error(t, s.RecordDeployment("SN_MAIN", "nope"))
	assert.Equal(t, testDocument, readStore(t, s))
}

func TestRecordDeploymentConflicts(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "flow style network",
			doc:  "networks:\n  SN_MAIN: {explorer_url: https://starkscan.co}\n",
		},
		{
			name: "flow style networks",
			doc:  "networks: {SN_MAIN: {explorer_url: https://starkscan.co}}\n",
		},
		{
			name: "duplicate network",
			doc:  "networks:\n  SN_MAIN:\n    explorer_url: https://starkscan.co\n  SN_MAIN:\n    explorer_url: https://starkscan.co\n",
		},
		{
			name: "address inherited through a merge key",
			doc:  "networks:\n  SN_MAIN: &base\n    explorer_url: https://starkscan.co\n    gateway_contract: \"0x1\"\n  SN_SEPOLIA:\n    <<: *base\n    explorer_url: https://sepolia.starkscan.co\n",
		},
		{
			name: "network aliased to another",
			doc:  "networks:\n  SN_MAIN: &main\n    explorer_url: https://starkscan.co\n    gateway_contract: \"0x1\"\n  SN_SEPOLIA: *main\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := writeStore(t, tt.doc)
			err := s.RecordDeployment("SN_MAIN", "0xabc")
			require.Error(t, err)
			assert.True(t, IsPersistenceConflict(err), "got %v", err)
			assert.Equal(t, tt.doc, readStore(t, s))
		})
	}
}

func TestPatchGatewayContractConflicts(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "multi-line value",
			doc:  "networks:\n  SN_MAIN:\n    gateway_contract: \"0x1\n      23\"\n",
		},
		{
			name: "block scalar value",
			doc:  "networks:\n  SN_MAIN:\n    gateway_contract: |\n      0x1\n",
		},
		{
			name: "sequence value",
			doc:  "networks:\n  SN_MAIN:\n    gateway_contract: [0x1]\n",
		},
		{
			name: "duplicate key",
			doc:  "networks:\n  SN_MAIN:\n    gateway_contract: 0x1\n    gateway_contract: 0x2\n",
		},
		{
			name: "missing network",
			doc:  "networks:\n  SN_SEPOLIA:\n    explorer_url: https://starkscan.co\n",
		},
		{
			name: "network is a scalar",
			doc:  "networks:\n  SN_MAIN: none\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := patchGatewayContract([]byte(tt.doc), "SN_MAIN", "0xabc")
			assert.ErrorIs(t, err, ErrPersistenceConflict)
		})
	}
}

func TestStoreInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "networks.yaml")
	s := NewStore(path, WithEnv(noEnv))

	require.NoError(t, s.Init(false))
	assert.Equal(t, string(DefaultDocument()), readStore(t, s))

	assert.Error(t, s.Init(false))

	require.NoError(t, os.WriteFile(path, []byte("networks: {}\n"), 0644))
	require.NoError(t, s.Init(true))
	assert.Equal(t, string(DefaultDocument()), readStore(t, s))
}

func TestStoreKeepsFileMode(t *testing.T) {
	s := writeStore(t, testDocument)

	require.NoError(t, s.RecordDeployment("SN_SEPOLIA", "0xABC"))

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

package networks

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pendergraft/gatewayctl/internal/validation"
)

const gatewayKey = "gateway_contract"

//go:embed defaults.yaml
var defaultDocument []byte

// DefaultDocument returns the built-in network document.
func DefaultDocument() []byte {
	return bytes.Clone(defaultDocument)
}

// Store is the YAML file backing the registry. It is the only writer of the
// file and only ever changes a network's gateway_contract value.
type Store struct {
	path string
	opts []Option
}

// NewStore creates a store for the document at path.
func NewStore(path string, opts ...Option) *Store {
	return &Store{path: path, opts: opts}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and validates the document.
func (s *Store) Load() (*Registry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading network store: %w", err)
	}
	return Parse(data, s.opts...)
}

// Init writes the default document. An existing file is only replaced when
// force is set.
func (s *Store) Init(force bool) error {
	if _, err := os.Stat(s.path); err == nil && !force {
		return fmt.Errorf("network store already exists at %s (use --force to overwrite)", s.path)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	return writeFileAtomic(s.path, DefaultDocument(), 0644)
}

// RecordDeployment sets the network's gateway_contract to address. Only the
// value (or one inserted line) changes; everything else in the file is kept
// byte for byte. Recording the same address twice leaves the file unchanged.
func (s *Store) RecordDeployment(networkID, address string) error {
	if err := validation.ValidateAddress(address); err != nil {
		return fmt.Errorf("recording deployment: %w", err)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("reading network store: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading network store: %w", err)
	}

	current, err := Parse(data, s.opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceConflict, err)
	}
	if _, err := current.Resolve(networkID); err != nil {
		return err
	}

	patched, err := patchGatewayContract(data, networkID, address)
	if err != nil {
		return err
	}
	if bytes.Equal(patched, data) {
		return nil
	}

	// The patched document must still load and carry the new address.
	reg, err := Parse(patched, s.opts...)
	if err != nil {
		return fmt.Errorf("%w: patched document is invalid: %w", ErrPersistenceConflict, err)
	}
	n, err := reg.Resolve(networkID)
	if err != nil || n.GatewayContract != address {
		return fmt.Errorf("%w: patched document does not carry the new address for %s", ErrPersistenceConflict, networkID)
	}
	if id, ok := otherNetworkChanged(current, reg, networkID); ok {
		return fmt.Errorf("%w: patching %s also changes %s (shared anchor?)", ErrPersistenceConflict, networkID, id)
	}

	return writeFileAtomic(s.path, patched, info.Mode().Perm())
}

// otherNetworkChanged reports the first network other than networkID that
// differs between before and after.
func otherNetworkChanged(before, after *Registry, networkID string) (string, bool) {
	if !slices.Equal(before.IDs(), after.IDs()) {
		return "the network list", true
	}
	for _, b := range before.Networks() {
		if b.ID == networkID {
			continue
		}
		a, err := after.Resolve(b.ID)
		if err != nil || !reflect.DeepEqual(a, b) {
			return b.ID, true
		}
	}
	return "", false
}

// patchGatewayContract locates the network entry through the YAML node tree
// and splices the new value into the original bytes.
func patchGatewayContract(data []byte, networkID, address string) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %v", ErrPersistenceConflict, err)
	}

	networksNode, err := networksMapping(&root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	if networksNode.Style&yaml.FlowStyle != 0 {
		return nil, fmt.Errorf("%w: networks is a flow mapping", ErrPersistenceConflict)
	}

	var entry *yaml.Node
	for i := 0; i+1 < len(networksNode.Content); i += 2 {
		if networksNode.Content[i].Value != networkID {
			continue
		}
		if entry != nil {
			return nil, fmt.Errorf("%w: network %s appears more than once", ErrPersistenceConflict, networkID)
		}
		entry = networksNode.Content[i+1]
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: network %s not found", ErrPersistenceConflict, networkID)
	}
	if entry.Kind != yaml.MappingNode || entry.Style&yaml.FlowStyle != 0 || len(entry.Content) == 0 {
		return nil, fmt.Errorf("%w: network %s is not a block mapping", ErrPersistenceConflict, networkID)
	}

	lines := bytes.SplitAfter(data, []byte("\n"))
	value := strconv.Quote(address)

	var key, current *yaml.Node
	for i := 0; i+1 < len(entry.Content); i += 2 {
		if entry.Content[i].Value != gatewayKey {
			continue
		}
		if key != nil {
			return nil, fmt.Errorf("%w: %s appears more than once in %s", ErrPersistenceConflict, gatewayKey, networkID)
		}
		key, current = entry.Content[i], entry.Content[i+1]
	}

	if key == nil {
		return insertLine(lines, entry, fmt.Sprintf("%s: %s", gatewayKey, value))
	}
	if current.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%w: %s in %s is not a scalar", ErrPersistenceConflict, gatewayKey, networkID)
	}
	return replaceScalar(lines, key, current, value)
}

// replaceScalar swaps the text of a single-line scalar for value.
func replaceScalar(lines [][]byte, key, node *yaml.Node, value string) ([]byte, error) {
	if node.Value == "" && node.Style == 0 {
		return replaceEmptyValue(lines, key, value)
	}

	idx := node.Line - 1
	if idx < 0 || idx >= len(lines) {
		return nil, fmt.Errorf("%w: value position out of range", ErrPersistenceConflict)
	}
	body, eol := splitEOL(lines[idx])
	runes := []rune(body)
	start := node.Column - 1
	if start < 0 || start >= len(runes) {
		return nil, fmt.Errorf("%w: value position out of range", ErrPersistenceConflict)
	}

	end := -1
	switch node.Style {
	case yaml.DoubleQuotedStyle:
		for i := start + 1; i < len(runes); i++ {
			if runes[i] == '\\' {
				i++
				continue
			}
			if runes[i] == '"' {
				end = i + 1
				break
			}
		}
	case yaml.SingleQuotedStyle:
		for i := start + 1; i < len(runes); i++ {
			if runes[i] != '\'' {
				continue
			}
			if i+1 < len(runes) && runes[i+1] == '\'' {
				i++
				continue
			}
			end = i + 1
			break
		}
	case 0:
		text := []rune(node.Value)
		if start+len(text) <= len(runes) && string(runes[start:start+len(text)]) == node.Value {
			end = start + len(text)
		}
	}
	if end < 0 {
		return nil, fmt.Errorf("%w: %s value must be a single-line scalar", ErrPersistenceConflict, gatewayKey)
	}

	patched := string(runes[:start]) + value + string(runes[end:]) + eol
	return joinWith(lines, idx, []byte(patched)), nil
}

// replaceEmptyValue handles "gateway_contract:" with no value after the colon.
func replaceEmptyValue(lines [][]byte, key *yaml.Node, value string) ([]byte, error) {
	idx := key.Line - 1
	if idx < 0 || idx >= len(lines) {
		return nil, fmt.Errorf("%w: key position out of range", ErrPersistenceConflict)
	}
	body, eol := splitEOL(lines[idx])
	runes := []rune(body)
	colon := key.Column - 1 + len([]rune(gatewayKey))
	if colon >= len(runes) || runes[colon] != ':' {
		return nil, fmt.Errorf("%w: unexpected %s layout", ErrPersistenceConflict, gatewayKey)
	}

	rest := strings.TrimSpace(string(runes[colon+1:]))
	patched := string(runes[:colon+1]) + " " + value
	if rest != "" {
		if !strings.HasPrefix(rest, "#") {
			return nil, fmt.Errorf("%w: unexpected %s layout", ErrPersistenceConflict, gatewayKey)
		}
		patched += " " + rest
	}
	return joinWith(lines, idx, []byte(patched+eol)), nil
}

// insertLine adds text as a new key after the last line of entry, indented
// like the entry's existing keys.
func insertLine(lines [][]byte, entry *yaml.Node, text string) ([]byte, error) {
	last := lastLine(entry)
	if last < 1 || last > len(lines) {
		return nil, fmt.Errorf("%w: entry position out of range", ErrPersistenceConflict)
	}
	if hasBlockScalar(entry) {
		return nil, fmt.Errorf("%w: entry contains a block scalar", ErrPersistenceConflict)
	}

	indent := strings.Repeat(" ", entry.Content[0].Column-1)
	_, eol := splitEOL(lines[last-1])

	out := make([][]byte, 0, len(lines)+1)
	out = append(out, lines[:last]...)
	if eol == "" {
		// Entry ends on the final line of a file without a trailing newline.
		eol = "\n"
		out[last-1] = append(bytes.Clone(out[last-1]), eol...)
		out = append(out, []byte(indent+text))
	} else {
		out = append(out, []byte(indent+text+eol))
	}
	out = append(out, lines[last:]...)
	return bytes.Join(out, nil), nil
}

func lastLine(n *yaml.Node) int {
	line := n.Line
	for _, c := range n.Content {
		if l := lastLine(c); l > line {
			line = l
		}
	}
	return line
}

func hasBlockScalar(n *yaml.Node) bool {
	if n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return true
	}
	for _, c := range n.Content {
		if hasBlockScalar(c) {
			return true
		}
	}
	return false
}

func splitEOL(line []byte) (string, string) {
	s := string(line)
	switch {
	case strings.HasSuffix(s, "\r\n"):
		return s[:len(s)-2], "\r\n"
	case strings.HasSuffix(s, "\n"):
		return s[:len(s)-1], "\n"
	default:
		return s, ""
	}
}

func joinWith(lines [][]byte, idx int, replacement []byte) []byte {
	out := make([][]byte, len(lines))
	copy(out, lines)
	out[idx] = replacement
	return bytes.Join(out, nil)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing network store: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("writing network store: %w", err)
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing network store: %w", err)
	}
	return nil
}

// IsPersistenceConflict reports whether err means the store could not be
// patched safely.
func IsPersistenceConflict(err error) bool {
	return errors.Is(err, ErrPersistenceConflict)
}

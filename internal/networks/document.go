package networks

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// networkDoc is the YAML representation of a single network entry.
type networkDoc struct {
	RPCURL          string    `yaml:"rpc_url"`
	RPCURLEnv       string    `yaml:"rpc_url_env"`
	ExplorerURL     string    `yaml:"explorer_url"`
	VerifierNetwork string    `yaml:"verifier_network"`
	SupportedTokens yaml.Node `yaml:"supported_tokens"`
	GatewayContract string    `yaml:"gateway_contract"`
}

type parseConfig struct {
	getenv func(string) string
}

// Option customizes how a document is parsed.
type Option func(*parseConfig)

// WithEnv sets the lookup used to resolve rpc_url_env. Defaults to os.Getenv.
func WithEnv(getenv func(string) string) Option {
	return func(c *parseConfig) {
		c.getenv = getenv
	}
}

// Parse decodes and validates a network document. Network and token order
// follow the document.
func Parse(data []byte, opts ...Option) (*Registry, error) {
	cfg := &parseConfig{getenv: os.Getenv}
	for _, opt := range opts {
		opt(cfg)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: parsing YAML: %v", ErrInvalidConfig, err)
	}

	networksNode, err := networksMapping(&root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var entries []NetworkConfig
	for i := 0; i+1 < len(networksNode.Content); i += 2 {
		id := networksNode.Content[i].Value

		var doc networkDoc
		if err := networksNode.Content[i+1].Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: network %s: %v", ErrInvalidConfig, id, err)
		}

		tokens, err := decodeTokens(&doc.SupportedTokens)
		if err != nil {
			return nil, fmt.Errorf("%w: network %s: %v", ErrInvalidConfig, id, err)
		}

		rpcURL := doc.RPCURL
		if doc.RPCURLEnv != "" {
			if v := cfg.getenv(doc.RPCURLEnv); v != "" {
				rpcURL = v
			}
		}

		entries = append(entries, NetworkConfig{
			ID:              id,
			RPCURL:          rpcURL,
			RPCURLEnv:       doc.RPCURLEnv,
			ExplorerURL:     doc.ExplorerURL,
			VerifierNetwork: doc.VerifierNetwork,
			Tokens:          tokens,
			GatewayContract: doc.GatewayContract,
		})
	}

	return NewRegistry(entries...)
}

// networksMapping returns the mapping node under the top-level "networks" key.
func networksMapping(root *yaml.Node) (*yaml.Node, error) {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping")
	}

	var found *yaml.Node
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value != "networks" {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("duplicate networks key")
		}
		found = top.Content[i+1]
	}
	if found == nil {
		return nil, fmt.Errorf("missing networks key")
	}
	if found.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("networks must be a mapping")
	}
	return found, nil
}

func decodeTokens(node *yaml.Node) ([]TokenConfig, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("supported_tokens must be a mapping")
	}

	tokens := make([]TokenConfig, 0, len(node.Content)/2)
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		symbol := node.Content[i].Value
		if seen[symbol] {
			return nil, fmt.Errorf("duplicate token %s", symbol)
		}
		seen[symbol] = true

		var t TokenConfig
		if err := node.Content[i+1].Decode(&t); err != nil {
			return nil, fmt.Errorf("token %s: %v", symbol, err)
		}
		t.Symbol = symbol
		tokens = append(tokens, t)
	}
	return tokens, nil
}

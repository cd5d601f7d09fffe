package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// =============================================================================
// Types
// =============================================================================

// Artifact is a compiled unit: its interface and creation bytecode.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

// Resolver resolves a logical unit name to its artifact.
type Resolver interface {
	// Resolve returns ErrNotFound for unknown names and ErrMalformed for
	// artifacts missing an interface or bytecode.
	Resolve(ctx context.Context, name string) (*Artifact, error)
}

// =============================================================================
// FileResolver
// =============================================================================

// FileResolver reads Hardhat or Foundry JSON artifacts from a directory tree.
// A name resolves to {dir}/{name}.json when present, otherwise to the first
// {name}.json found walking the tree (e.g. artifacts/contracts/Token.sol/Token.json
// or out/Token.sol/Token.json).
type FileResolver struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Artifact
}

// NewFileResolver creates a resolver rooted at dir.
func NewFileResolver(dir string) *FileResolver {
	return &FileResolver{
		dir:   dir,
		cache: make(map[string]*Artifact),
	}
}

func (r *FileResolver) Resolve(ctx context.Context, name string) (*Artifact, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, NewArtifactError("Resolve", name, "invalid artifact name", ErrNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.cache[name]; ok {
		return a, nil
	}

	path, err := r.locate(ctx, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewArtifactError("Resolve", name, fmt.Sprintf("read %s: %v", path, err), ErrNotFound)
	}

	a, err := ParseArtifact(name, data)
	if err != nil {
		return nil, err
	}
	r.cache[name] = a
	return a, nil
}

// locate finds the artifact file for a name.
func (r *FileResolver) locate(ctx context.Context, name string) (string, error) {
	want := name + ".json"
	direct := filepath.Join(r.dir, want)
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct, nil
	}

	errFound := errors.New("found")
	var found string
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			// Build-info holds compiler input/output, not artifacts.
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == want {
			found = path
			return errFound
		}
		return nil
	})
	if found != "" {
		return found, nil
	}
	if err != nil && !errors.Is(err, errFound) {
		return "", NewArtifactError("Resolve", name, fmt.Sprintf("search %s: %v", r.dir, err), ErrNotFound)
	}
	return "", NewArtifactError("Resolve", name, fmt.Sprintf("no %s under %s", want, r.dir), ErrNotFound)
}

// =============================================================================
// Parsing
// =============================================================================

// artifactFile covers both Hardhat ("bytecode": "0x...") and Foundry
// ("bytecode": {"object": "0x..."}) layouts.
type artifactFile struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode json.RawMessage `json:"bytecode"`
}

// ParseArtifact decodes an artifact JSON document.
func ParseArtifact(name string, data []byte) (*Artifact, error) {
	var f artifactFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, NewArtifactError("Parse", name, fmt.Sprintf("invalid JSON: %v", err), ErrMalformed)
	}

	if len(bytes.TrimSpace(f.ABI)) == 0 || string(bytes.TrimSpace(f.ABI)) == "null" {
		return nil, NewArtifactError("Parse", name, "missing abi", ErrMalformed)
	}
	parsed, err := abi.JSON(bytes.NewReader(f.ABI))
	if err != nil {
		return nil, NewArtifactError("Parse", name, fmt.Sprintf("invalid abi: %v", err), ErrMalformed)
	}

	hexCode, err := bytecodeHex(f.Bytecode)
	if err != nil {
		return nil, NewArtifactError("Parse", name, err.Error(), ErrMalformed)
	}
	if hexCode == "" || hexCode == "0x" {
		return nil, NewArtifactError("Parse", name, "missing bytecode", ErrMalformed)
	}
	if !strings.HasPrefix(hexCode, "0x") {
		hexCode = "0x" + hexCode
	}
	if strings.Contains(hexCode, "__") {
		return nil, NewArtifactError("Parse", name, "bytecode has unlinked library placeholders", ErrMalformed)
	}
	code, err := hexutil.Decode(hexCode)
	if err != nil {
		return nil, NewArtifactError("Parse", name, fmt.Sprintf("invalid bytecode: %v", err), ErrMalformed)
	}

	return &Artifact{Name: name, ABI: parsed, Bytecode: code}, nil
}

func bytecodeHex(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("bytecode must be a hex string or {\"object\": hex}")
	}
	return obj.Object, nil
}

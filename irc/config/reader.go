// Package config provides the tag/attribute configuration reader used
// by the daemon and its modules. A config file is a set of named tags,
// each carrying one or more attribute blocks:
//
//	oper:
//	  - name: alice
//	    privs: usermod/host-others usermod/nick-self
//	limits:
//	  maxhost: 64
//
// YAML, TOML and JSON sources are supported, from a local file or an
// HTTP URL, chosen by extension. Modules read their own tags through
// the same Reader the core uses.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultPathEnv names the environment variable consulted by NewReader
// when no explicit source is given.
const DefaultPathEnv = "IRCD_CONF"

// Block is one attribute block under a tag.
type Block map[string]string

// Reader gives indexed access to the attribute blocks of a parsed
// config source. A Reader is immutable once built; rehashing builds a
// new one.
type Reader struct {
	source string
	tags   map[string][]Block
	err    error
}

// NewReader builds a Reader from the source named by IRCD_CONF, or
// "ircd.yaml" when unset.
func NewReader() (*Reader, error) {
	source := os.Getenv(DefaultPathEnv)
	if source == "" {
		source = "ircd.yaml"
	}
	return NewReaderFile(source)
}

// NewReaderFile builds a Reader from an explicit file path or URL.
// The returned Reader is non-nil even on error so callers can report
// through Verify.
func NewReaderFile(source string) (*Reader, error) {
	r := &Reader{
		source: source,
		tags:   make(map[string][]Block),
	}
	r.err = r.load(source)
	return r, r.err
}

func (r *Reader) load(source string) error {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return fmt.Errorf("failed to load config from URL: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to load config from URL, status: %s", resp.Status)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read config from URL: %v", err)
		}
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read config file: %v", err)
		}
	}

	raw := make(map[string]interface{})
	switch {
	case strings.HasSuffix(source, ".toml"):
		err = toml.Unmarshal(data, &raw)
	case strings.HasSuffix(source, ".json"):
		err = json.Unmarshal(data, &raw)
	default:
		// YAML, also the fallback for unknown extensions
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config: %v", err)
	}

	for tag, value := range raw {
		r.tags[tag] = coerceBlocks(value)
	}
	return nil
}

// coerceBlocks normalizes a tag value: a single map is one block, a
// list is one block per element. Scalar attribute values are rendered
// to strings so ReadValue has one return type.
func coerceBlocks(value interface{}) []Block {
	switch v := value.(type) {
	case map[string]interface{}:
		return []Block{coerceBlock(v)}
	case []map[string]interface{}:
		// TOML array-of-tables decodes to this shape directly.
		blocks := make([]Block, 0, len(v))
		for _, m := range v {
			blocks = append(blocks, coerceBlock(m))
		}
		return blocks
	case []interface{}:
		blocks := make([]Block, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				blocks = append(blocks, coerceBlock(m))
			}
		}
		return blocks
	}
	return nil
}

func coerceBlock(m map[string]interface{}) Block {
	block := make(Block, len(m))
	for attr, val := range m {
		block[attr] = renderScalar(val)
	}
	return block
}

func renderScalar(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Source returns the path or URL this Reader was built from.
func (r *Reader) Source() string {
	return r.source
}

// Verify reports whether the source parsed successfully.
func (r *Reader) Verify() error {
	return r.err
}

// Enumerate returns the number of blocks present under a tag.
func (r *Reader) Enumerate(tag string) int {
	return len(r.tags[tag])
}

// EnumerateValues returns the number of attributes in one block of a
// tag, or zero when the block does not exist.
func (r *Reader) EnumerateValues(tag string, index int) int {
	blocks := r.tags[tag]
	if index < 0 || index >= len(blocks) {
		return 0
	}
	return len(blocks[index])
}

// ReadValue returns the named attribute from the index-th block of a
// tag. Missing tags, out-of-range indexes and missing attributes all
// return the empty string.
func (r *Reader) ReadValue(tag, attr string, index int) string {
	blocks := r.tags[tag]
	if index < 0 || index >= len(blocks) {
		return ""
	}
	return blocks[index][attr]
}

// ReadInt reads an attribute as an integer. The second return reports
// whether the attribute was present and numeric.
func (r *Reader) ReadInt(tag, attr string, index int) (int, bool) {
	raw := r.ReadValue(tag, attr, index)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ReadBool reads an attribute as a boolean. Accepts true/1/yes/y in
// any case; everything else is false. The second return reports
// whether the attribute was present.
func (r *Reader) ReadBool(tag, attr string, index int) (bool, bool) {
	raw := r.ReadValue(tag, attr, index)
	if raw == "" {
		return false, false
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "y":
		return true, true
	}
	return false, true
}

package flow

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ParamKind enumerates the typed storage of a pipeline parameter. Each kind
// carries its own parser, resolved once when the table is loaded.
type ParamKind int

const (
	KindString ParamKind = iota
	KindFloat
	KindPath
)

// ParamSpec declares one parameter of the pipeline schema: its key, type,
// and the upstream step responsible for supplying it. The source appears in
// ConfigError messages so a missing value points at the right tool.
type ParamSpec struct {
	Key         string
	Kind        ParamKind
	Source      string
	Description string
}

// Schema is the full parameter schema of the pipeline. Every parameter is
// required the moment it is first used; parameters a run never touches may
// stay empty.
var Schema = []ParamSpec{
	{Key: "video_dir", Kind: KindPath, Source: "acquisition export", Description: "directory of PNG video frames"},
	{Key: "segments_file", Kind: KindPath, Source: "vessel tracing step", Description: "JSON region container of traced polylines"},
	{Key: "intervals_file", Kind: KindPath, Source: "interval annotation step", Description: "delimited startFrame,endFrame catalog"},
	{Key: "output_dir", Kind: KindString, Source: "operator", Description: "directory receiving matrices and rendered maps"},
	{Key: "pixel_size_um", Kind: KindFloat, Source: "acquisition metadata", Description: "physical pixel size in micrometers"},
	{Key: "frame_rate_fps", Kind: KindFloat, Source: "acquisition metadata", Description: "video frame rate in frames per second"},
	{Key: "min_segment_length_um", Kind: KindFloat, Source: "operator", Description: "segments below this length are marked short"},
	{Key: "max_measured_speed", Kind: KindFloat, Source: "operator", Description: "speeds above this are marked out of range (um/s)"},
	{Key: "max_plot_speed", Kind: KindFloat, Source: "operator", Description: "speed mapped to the top of the color scale (um/s)"},
	{Key: "line_thickness", Kind: KindFloat, Source: "operator", Description: "segment stroke width in pixels"},
	{Key: "arrow_size", Kind: KindFloat, Source: "operator", Description: "arrowhead size in pixels"},
	{Key: "arrow_cutoff", Kind: KindFloat, Source: "operator", Description: "no arrow when |velocity| is at or below this (um/s)"},
	{Key: "background_color", Kind: KindString, Source: "operator", Description: "map background as R,G,B bytes"},
	{Key: "lut_name", Kind: KindString, Source: "operator", Description: "color lookup table: fire, ice, grayscale or spectrum"},
	{Key: "estimator", Kind: KindString, Source: "operator", Description: "orientation estimator: standard or flicker"},
}

// ParamTable holds the loaded key/value pairs together with the schema.
// Missing keys load as empty; the first typed access of an empty value
// fails with a ConfigError, so a run only pays for the parameters it uses.
type ParamTable struct {
	values map[string]string
	specs  map[string]ParamSpec
}

// LoadParams reads a parameter file: one `key,value,description` line per
// parameter, where the description may itself contain commas. Lines opening
// with two or more comment markers (`//`, `##`) and blank lines are skipped.
func LoadParams(path string) (*ParamTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parameter file: %w", err)
	}
	t, err := ParseParams(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseParams decodes a parameter file held in memory and validates every
// non-empty typed value against the schema. Emptiness itself is not an
// error here; it becomes one on first use.
func ParseParams(data []byte) (*ParamTable, error) {
	t := &ParamTable{
		values: make(map[string]string),
		specs:  make(map[string]ParamSpec, len(Schema)),
	}
	for _, spec := range Schema {
		t.specs[spec.Key] = spec
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "##") {
			continue
		}
		parts := strings.SplitN(line, ",", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: expected key,value[,description], got %q", lineNo, line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		t.values[key] = value

		if spec, ok := t.specs[key]; ok && value != "" {
			if err := validateParam(spec, value); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan parameter file: %w", err)
	}
	return t, nil
}

func validateParam(spec ParamSpec, value string) error {
	if spec.Kind == KindFloat {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("parameter %q: %q is not a number", spec.Key, value)
		}
	}
	return nil
}

func (t *ParamTable) lookup(key string) (string, error) {
	v := t.values[key]
	if v == "" {
		hint := ""
		if spec, ok := t.specs[key]; ok {
			hint = spec.Source
		}
		return "", &ConfigError{Param: key, Hint: hint}
	}
	return v, nil
}

// String returns a string parameter, failing if it is empty or missing.
func (t *ParamTable) String(key string) (string, error) {
	return t.lookup(key)
}

// Float returns a float parameter.
func (t *ParamTable) Float(key string) (float64, error) {
	v, err := t.lookup(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", key, err)
	}
	return f, nil
}

// Path returns a path parameter, additionally failing with a ConfigError if
// the path does not exist on disk.
func (t *ParamTable) Path(key string) (string, error) {
	v, err := t.lookup(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(v); err != nil {
		hint := t.specs[key].Source
		return "", &ConfigError{Param: key, Hint: hint + " (path " + v + " not found)"}
	}
	return v, nil
}

// Snapshot returns a copy of every loaded key/value pair, for run records.
func (t *ParamTable) Snapshot() map[string]string {
	out := make(map[string]string, len(t.values))
	for k, v := range t.values {
		out[k] = v
	}
	return out
}

// FormatTemplate renders a parameter file template with every schema key,
// an empty value slot and the description, for operators starting a new
// project.
func FormatTemplate() []byte {
	var b bytes.Buffer
	b.WriteString("// vessel.report pipeline parameters\n")
	b.WriteString("// key,value,description\n")
	for _, spec := range Schema {
		fmt.Fprintf(&b, "%s,,%s\n", spec.Key, spec.Description)
	}
	return b.Bytes()
}

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cppforlife/go-patch/patch"
	"github.com/gonvenience/ytbx"
	"github.com/homeport/dyff/pkg/dyff"
	"github.com/mattn/go-isatty"
	"github.com/starkandwayne/goutils/ansi"

	"github.com/wayneeseguin/morph/log"
	"github.com/wayneeseguin/morph/pkg/morph"

	// Use geofffranks forks to persist the fix in https://github.com/go-yaml/yaml/pull/133/commits
	// Also https://github.com/go-yaml/yaml/pull/195
	"github.com/geofffranks/simpleyaml"
	"github.com/geofffranks/yaml"
	"github.com/voxelbrain/goptions"
)

// Version holds the current version of morph
var Version = "(development)"

var printfStdOut = func(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}

var getopts = func(o interface{}) {
	err := goptions.Parse(o)
	if err != nil {
		usage()
	}
}

var exit = func(code int) {
	os.Exit(code)
}

var usage = func() {
	goptions.PrintHelp()
	exit(1)
}

func envFlag(varname string) bool {
	val := os.Getenv(varname)
	return val != "" && strings.ToLower(val) != "false" && val != "0"
}

type diffOpts struct {
	Semantic bool               `goptions:"--semantic, description='Render a human-readable semantic report instead of a patch'"`
	JSON     bool               `goptions:"--json, description='Emit the computed patch as JSON instead of the debug rendering'"`
	Help     bool               `goptions:"--help, -h"`
	Files    goptions.Remainder `goptions:"description='Two YAML/JSON files to compare'"`
}

type applyOpts struct {
	Mode    string             `goptions:"--mode, description='Patch mode: strict (default), lenient, or clobber'"`
	GoPatch bool               `goptions:"--go-patch, description='Treat the patch file as a go-patch ops file'"`
	Help    bool               `goptions:"--help, -h"`
	Files   goptions.Remainder `goptions:"description='DOC PATCH: document to patch and the patch file'"`
}

type migrateOpts struct {
	Reverse bool               `goptions:"--reverse, description='Run the reversed migration program'"`
	Help    bool               `goptions:"--help, -h"`
	Files   goptions.Remainder `goptions:"description='DOC ACTIONS: document to migrate and the serialized action list'"`
}

type jsonOpts struct {
	Strict bool               `goptions:"--strict, description='Refuse to convert non-string keys to strings'"`
	Help   bool               `goptions:"--help, -h"`
	Files  goptions.Remainder `goptions:"description='Files to convert to JSON'"`
}

func main() {
	var options struct {
		Debug   bool   `goptions:"-D, --debug, description='Enable debugging'"`
		Trace   bool   `goptions:"-T, --trace, description='Enable trace mode debugging (very verbose)'"`
		Version bool   `goptions:"-v, --version, description='Display version information'"`
		Color   string `goptions:"--color, description='Control color output (on/off/auto, default: auto)'"`
		Action  goptions.Verbs
		Diff    diffOpts    `goptions:"diff"`
		Apply   applyOpts   `goptions:"apply"`
		Migrate migrateOpts `goptions:"migrate"`
		JSON    jsonOpts    `goptions:"json"`
	}
	getopts(&options)

	if envFlag("DEBUG") || options.Debug {
		log.DebugOn = true
	}

	if envFlag("TRACE") || options.Trace {
		log.TraceOn = true
		log.DebugOn = true
	}

	if options.Diff.Help || options.Apply.Help || options.Migrate.Help || options.JSON.Help {
		usage()
		return
	}

	if options.Version {
		printfStdOut("%s - Version %s\n", os.Args[0], Version)
		exit(0)
		return
	}

	shouldEnableColor := false
	switch options.Color {
	case "on":
		shouldEnableColor = true
	case "off":
		shouldEnableColor = false
	case "auto", "":
		shouldEnableColor = isatty.IsTerminal(os.Stderr.Fd())
	default:
		log.PrintfStdErr("Invalid --color option: %s. Must be 'on', 'off', or 'auto'.\n", options.Color)
		exit(1)
		return
	}
	ansi.Color(shouldEnableColor)

	switch options.Action {
	case "diff":
		if options.Color == "auto" || options.Color == "" {
			ansi.Color(isatty.IsTerminal(os.Stdout.Fd()))
		}
		if len(options.Diff.Files) != 2 {
			usage()
			return
		}
		output, differences, err := cmdDiff(options.Diff)
		if err != nil {
			log.PrintfStdErr("%s\n", err)
			exit(2)
			return
		}
		printfStdOut("%s", output)
		if differences {
			exit(1)
		}

	case "apply":
		if len(options.Apply.Files) != 2 {
			usage()
			return
		}
		output, err := cmdApply(options.Apply)
		if err != nil {
			log.PrintfStdErr("%s\n", err)
			exit(2)
			return
		}
		printfStdOut("%s", output)

	case "migrate":
		if len(options.Migrate.Files) != 2 {
			usage()
			return
		}
		output, err := cmdMigrate(options.Migrate)
		if err != nil {
			log.PrintfStdErr("%s\n", err)
			exit(2)
			return
		}
		printfStdOut("%s", output)

	case "json":
		jsons, err := jsonifyFiles(options.JSON.Files, options.JSON.Strict)
		if err != nil {
			log.PrintfStdErr("%s\n", err)
			exit(2)
			return
		}
		for _, output := range jsons {
			printfStdOut("%s\n", output)
		}

	default:
		usage()
		return
	}
	exit(0)
}

func readFileOrStdin(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, ansi.Errorf("@R{Error reading STDIN}: %s", err.Error())
		}
		return data, nil
	}
	// #nosec G304 - file paths come from the command line; reading them is the job
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ansi.Errorf("@R{Error reading file} @m{%s}: %s", path, err)
	}
	return data, nil
}

func loadDocument(path string) (morph.DynamicValue, error) {
	data, err := readFileOrStdin(path)
	if err != nil {
		return nil, err
	}
	doc, err := morph.FromYAML(data)
	if err != nil {
		return nil, ansi.Errorf("@m{%s}: @R{%s}", path, err.Error())
	}
	return doc, nil
}

func cmdDiff(options diffOpts) (string, bool, error) {
	if options.Semantic {
		return semanticDiff(options.Files[0], options.Files[1])
	}

	from, err := loadDocument(options.Files[0])
	if err != nil {
		return "", false, err
	}
	to, err := loadDocument(options.Files[1])
	if err != nil {
		return "", false, err
	}

	diff := morph.Diff(from, to)
	if options.JSON {
		out, err := json.Marshal(diff)
		if err != nil {
			return "", false, err
		}
		return string(out) + "\n", !diff.IsEmpty(), nil
	}
	return diff.Render(), !diff.IsEmpty(), nil
}

func semanticDiff(fromPath, toPath string) (string, bool, error) {
	from, to, err := ytbx.LoadFiles(fromPath, toPath)
	if err != nil {
		return "", false, err
	}

	report, err := dyff.CompareInputFiles(from, to)
	if err != nil {
		return "", false, err
	}

	reportWriter := &dyff.HumanReport{
		Report:            report,
		DoNotInspectCerts: false,
		NoTableStyle:      false,
		OmitHeader:        true,
	}

	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	if err := reportWriter.WriteReport(out); err != nil {
		return "", false, err
	}
	out.Flush()

	return buf.String(), len(report.Diffs) > 0, nil
}

func parseGoPatch(data []byte) (patch.Ops, error) {
	opdefs := []patch.OpDefinition{}
	err := yaml.Unmarshal(data, &opdefs)
	if err != nil {
		return nil, ansi.Errorf("@R{Unable to parse go-patch definitions}: %s", err)
	}
	ops, err := patch.NewOpsFromDefinitions(opdefs)
	if err != nil {
		return nil, ansi.Errorf("@R{Unable to parse go-patch definitions}: %s", err)
	}
	return ops, nil
}

func cmdApply(options applyOpts) (string, error) {
	mode := morph.Strict
	if options.Mode != "" {
		var err error
		mode, err = morph.ParsePatchMode(options.Mode)
		if err != nil {
			return "", err
		}
	}

	doc, err := loadDocument(options.Files[0])
	if err != nil {
		return "", err
	}

	patchData, err := readFileOrStdin(options.Files[1])
	if err != nil {
		return "", err
	}

	var p morph.Patch
	if options.GoPatch {
		ops, err := parseGoPatch(patchData)
		if err != nil {
			return "", err
		}
		p, err = morph.FromGoPatch(ops)
		if err != nil {
			return "", err
		}
	} else {
		if err := json.Unmarshal(patchData, &p); err != nil {
			return "", ansi.Errorf("@m{%s}: @R{%s}", options.Files[1], err.Error())
		}
	}

	log.DEBUG("applying %d patch operation(s) in %s mode", len(p.Ops), mode)
	result, err := p.Apply(doc, mode)
	if err != nil {
		return "", err
	}

	out, err := morph.ToYAML(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func cmdMigrate(options migrateOpts) (string, error) {
	doc, err := loadDocument(options.Files[0])
	if err != nil {
		return "", err
	}

	actionData, err := readFileOrStdin(options.Files[1])
	if err != nil {
		return "", err
	}

	var m morph.Migration
	if err := json.Unmarshal(actionData, &m); err != nil {
		return "", ansi.Errorf("@m{%s}: @R{%s}", options.Files[1], err.Error())
	}

	var result morph.DynamicValue
	if options.Reverse {
		log.DEBUG("running %d action(s) in reverse", len(m.Actions))
		result, err = m.RunReverse(doc)
	} else {
		log.DEBUG("running %d action(s)", len(m.Actions))
		result, err = m.Run(doc)
	}
	if err != nil {
		return "", err
	}

	out, err := morph.ToYAML(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func jsonifyFiles(paths []string, strict bool) ([]string, error) {
	l := []string{}
	for _, path := range paths {
		data, err := readFileOrStdin(path)
		if err != nil {
			return nil, err
		}
		docs := bytes.Split(data, []byte("\n---\n"))
		if len(docs[0]) == 0 {
			docs = docs[1:]
		}
		for i, doc := range docs {
			jsonData, err := jsonifyData(doc, strict)
			if err != nil {
				return nil, ansi.Errorf("%s[%d]: %s", path, i, err)
			}
			l = append(l, jsonData)
		}
	}
	return l, nil
}

func jsonifyData(data []byte, strict bool) (string, error) {
	y, err := simpleyaml.NewYaml(data)
	if err != nil {
		return "", err
	}

	doc, err := y.Map()
	if err != nil {
		return "", ansi.Errorf("@R{Root of YAML document is not a hash/map}: %s", err.Error())
	}

	doc_, err := deinterface(doc, strict)
	if err != nil {
		return "", err
	}

	b, err := json.Marshal(doc_)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func deinterface(o interface{}, strict bool) (interface{}, error) {
	switch v := o.(type) {
	case map[interface{}]interface{}:
		out := map[string]interface{}{}
		for k, val := range v {
			key, ok := k.(string)
			if !ok {
				if strict {
					return nil, ansi.Errorf("@R{Non-string key found}: %v", k)
				}
				key = fmt.Sprintf("%v", k)
			}
			converted, err := deinterface(val, strict)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			converted, err := deinterface(e, strict)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		return o, nil
	}
}

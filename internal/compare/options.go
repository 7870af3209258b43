package compare

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

// Well-known artifact names.
const (
	ReportFile       = "report.json"
	SystemErrorsFile = "system_errors.json"
	DefaultHTMLName  = "report.html"
)

// RuntimeSummaryFields change on every run and are dropped by
// --strip-runtime-fields.
var RuntimeSummaryFields = []string{
	"validatedAt",
	"validationTimeSeconds",
	"memoryUsageRecords",
	"outputDirectory",
}

// SortableSummaryFields are summary arrays whose order carries no meaning.
var SortableSummaryFields = []string{"files", "gtfsFeatures"}

// Options selects which artifacts are compared and which differences are
// suppressed before comparing.
type Options struct {
	ExtraJSON           []string
	IgnoreSummary       bool
	IgnoreSummaryFields []string
	SortSummaryArrays   bool
	IgnoreNoticeOrder   bool
	SkipHTML            bool
	HTMLName            string
}

// HTML returns the configured HTML artifact name or the default.
func (o Options) HTML() string {
	if o.HTMLName == "" {
		return DefaultHTMLName
	}
	return o.HTMLName
}

// JSONFiles returns the JSON artifacts checked, in order.
func (o Options) JSONFiles() []string {
	files := []string{ReportFile, SystemErrorsFile}
	return append(files, o.ExtraJSON...)
}

// ParseFlags builds Options from compare flags such as those found in the
// manifest or COMPARE_FLAGS. Later occurrences of --html-name win; repeated
// --extra-json and --ignore-summary-field accumulate.
func ParseFlags(args []string) (Options, error) {
	fs := pflag.NewFlagSet("compare", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		opts                   Options
		stripRuntime           bool
		ignoreInput            bool
		ignoreValidatorVersion bool
	)
	fs.StringArrayVar(&opts.ExtraJSON, "extra-json", nil, "additional JSON files to compare (repeatable)")
	fs.BoolVar(&opts.IgnoreSummary, "ignore-summary", false, "drop the report summary before comparing")
	fs.StringArrayVar(&opts.IgnoreSummaryFields, "ignore-summary-field", nil, "summary field to ignore (repeatable)")
	fs.BoolVar(&stripRuntime, "strip-runtime-fields", false, "ignore validatedAt, validationTimeSeconds, memoryUsageRecords, outputDirectory")
	fs.BoolVar(&ignoreInput, "ignore-input", false, "ignore gtfsInput in the summary")
	fs.BoolVar(&ignoreValidatorVersion, "ignore-validator-version", false, "ignore validatorVersion in the summary")
	fs.BoolVar(&opts.IgnoreNoticeOrder, "ignore-notice-order", false, "sort notices and sampleNotices before comparing")
	fs.BoolVar(&opts.SortSummaryArrays, "sort-summary-arrays", false, "sort summary arrays like files and gtfsFeatures")
	fs.BoolVar(&opts.SkipHTML, "skip-html", false, "do not compare the HTML report")
	fs.StringVar(&opts.HTMLName, "html-name", DefaultHTMLName, "HTML report file name")

	if err := fs.Parse(args); err != nil {
		return Options{}, fmt.Errorf("compare: parse flags: %w", err)
	}
	if fs.NArg() > 0 {
		return Options{}, fmt.Errorf("compare: unexpected argument %q", fs.Arg(0))
	}

	if stripRuntime {
		opts.IgnoreSummaryFields = append(opts.IgnoreSummaryFields, RuntimeSummaryFields...)
	}
	if ignoreInput {
		opts.IgnoreSummaryFields = append(opts.IgnoreSummaryFields, "gtfsInput")
	}
	if ignoreValidatorVersion {
		opts.IgnoreSummaryFields = append(opts.IgnoreSummaryFields, "validatorVersion")
	}
	return opts, nil
}

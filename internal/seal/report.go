package seal

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	reportRepositoryLineTemplateConstant = "%s: %s\n"
	reportSummaryLineTemplateConstant    = "%d repositories processed, %d succeeded, %d failed\n"
	reportFailureDetailTemplateConstant  = "  - %s\n"
	repositoryStatusOKConstant           = "ok"
	repositoryStatusUnchangedConstant    = "ok (no changes)"
	repositoryStatusFailedTemplate       = "failed at %s: %s"
	repositoryStatusInvalidConstant      = "invalid"
)

// PipelineStage identifies the lifecycle step most recently completed for a repository.
type PipelineStage string

// Lifecycle stages in execution order.
const (
	StageDiscovered       PipelineStage = "discovered"
	StageBuilt            PipelineStage = "built"
	StageSigned           PipelineStage = "signed"
	StageSynced           PipelineStage = "synced"
	StageSignatureChecked PipelineStage = "signature_checked"
	StageIntegrityChecked PipelineStage = "integrity_checked"
)

// RepositoryReport captures the per-repository outcome of a batch run.
type RepositoryReport struct {
	RepositoryPath string        `yaml:"repository"`
	StageReached   PipelineStage `yaml:"stage"`
	Succeeded      bool          `yaml:"succeeded"`
	Changed        bool          `yaml:"changed,omitempty"`
	SignatureValid bool          `yaml:"signature_valid,omitempty"`
	IntegrityValid bool          `yaml:"integrity_valid,omitempty"`
	Failures       []string      `yaml:"failures,omitempty"`
	FailureMessage string        `yaml:"error,omitempty"`
}

// OrchestrationReport aggregates every repository outcome of a batch run.
type OrchestrationReport struct {
	Repositories []RepositoryReport `yaml:"repositories"`
}

// SucceededCount tallies repositories that completed their pipeline.
func (report OrchestrationReport) SucceededCount() int {
	succeeded := 0
	for _, repositoryReport := range report.Repositories {
		if repositoryReport.Succeeded {
			succeeded++
		}
	}
	return succeeded
}

// FailedCount tallies repositories that did not complete their pipeline.
func (report OrchestrationReport) FailedCount() int {
	return len(report.Repositories) - report.SucceededCount()
}

// AllSucceeded reports whether every repository completed its pipeline.
func (report OrchestrationReport) AllSucceeded() bool {
	return report.FailedCount() == 0
}

// RenderText writes a human-readable summary of the batch run.
func (report OrchestrationReport) RenderText(output io.Writer) error {
	for _, repositoryReport := range report.Repositories {
		if _, writeError := fmt.Fprintf(output, reportRepositoryLineTemplateConstant, repositoryReport.RepositoryPath, repositoryReport.statusLine()); writeError != nil {
			return writeError
		}
		for _, failureDetail := range repositoryReport.Failures {
			if _, writeError := fmt.Fprintf(output, reportFailureDetailTemplateConstant, failureDetail); writeError != nil {
				return writeError
			}
		}
	}

	_, writeError := fmt.Fprintf(output, reportSummaryLineTemplateConstant, len(report.Repositories), report.SucceededCount(), report.FailedCount())
	return writeError
}

// RenderYAML writes the machine-readable form of the batch run.
func (report OrchestrationReport) RenderYAML(output io.Writer) error {
	encoder := yaml.NewEncoder(output)
	defer func() { _ = encoder.Close() }()
	return encoder.Encode(report)
}

// Render dispatches to the requested report format, defaulting to text.
func (report OrchestrationReport) Render(output io.Writer, reportFormat string) error {
	if reportFormat == ReportFormatYAML {
		return report.RenderYAML(output)
	}
	return report.RenderText(output)
}

func (repositoryReport RepositoryReport) statusLine() string {
	if !repositoryReport.Succeeded {
		if len(repositoryReport.FailureMessage) > 0 {
			return fmt.Sprintf(repositoryStatusFailedTemplate, string(repositoryReport.StageReached), repositoryReport.FailureMessage)
		}
		return repositoryStatusInvalidConstant
	}
	if repositoryReport.StageReached == StageSynced && !repositoryReport.Changed {
		return repositoryStatusUnchangedConstant
	}
	return repositoryStatusOKConstant
}

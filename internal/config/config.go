package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds all process-wide settings. It is loaded once at startup and
// passed by value into the components that need it, never read as a global.
type Config struct {
	// DefectDojo endpoint and credential.
	URL    string `env:"DEFECT_DOJO_URL,required"`
	APIKey string `env:"DEFECT_DOJO_API_KEY,required"`

	// The submission call is one-shot with no cancellation, so it carries
	// its own bounded timeout independent of the watch connection.
	RequestTimeout time.Duration `env:"DEFECT_DOJO_REQUEST_TIMEOUT" envDefault:"5m"`

	// DefectDojo deployments this operator targets sit behind self-signed
	// certificates, hence the insecure default. Set to false when the
	// endpoint presents a verifiable chain.
	InsecureSkipTLSVerify bool `env:"DEFECT_DOJO_INSECURE_SKIP_TLS_VERIFY" envDefault:"true"`

	// Optional label filter: when both are set, only VulnerabilityReports
	// carrying Label=LabelValue are processed.
	Label      string `env:"LABEL"`
	LabelValue string `env:"LABEL_VALUE"`

	ScanPolicy ScanPolicy
}

// ScanPolicy carries the fixed reimport-scan form fields. The values are
// passed through to DefectDojo verbatim, so they are kept as strings and
// never interpreted here.
type ScanPolicy struct {
	Active                       string `env:"DEFECT_DOJO_ACTIVE" envDefault:"true"`
	Verified                     string `env:"DEFECT_DOJO_VERIFIED" envDefault:"true"`
	CloseOldFindings             string `env:"DEFECT_DOJO_CLOSE_OLD_FINDINGS" envDefault:"true"`
	CloseOldFindingsProductScope string `env:"DEFECT_DOJO_CLOSE_OLD_FINDINGS_PRODUCT_SCOPE" envDefault:"true"`
	MinimumSeverity              string `env:"DEFECT_DOJO_MINIMUM_SEVERITY" envDefault:"Info"`
	AutoCreateContext            string `env:"DEFECT_DOJO_AUTO_CREATE_CONTEXT" envDefault:"true"`
	DeduplicationOnEngagement    string `env:"DEFECT_DOJO_DEDUPLICATION_ON_ENGAGEMENT" envDefault:"false"`
	DoNotReactivate              string `env:"DEFECT_DOJO_DO_NOT_REACTIVATE" envDefault:"true"`
	Environment                  string `env:"DEFECT_DOJO_ENVIRONMENT" envDefault:"Production"`
	ProductName                  string `env:"DEFECT_DOJO_PRODUCT_NAME" envDefault:"Kubernetes Cluster"`
	ProductTypeName              string `env:"DEFECT_DOJO_PRODUCT_TYPE_NAME" envDefault:"Kubernetes"`
	GroupBy                      string `env:"DEFECT_DOJO_GROUP_BY" envDefault:"component_name+component_version"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to parse configuration from environment: %w", err)
	}

	return cfg, nil
}

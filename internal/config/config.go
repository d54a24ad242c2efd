package config

import (
	"github.com/Aivilo1308/interim365-sub000/internal/scoring"
	"github.com/Aivilo1308/interim365-sub000/library/pg"
	"github.com/Aivilo1308/interim365-sub000/library/yamlenv"
)

type Config struct {
	Postgres pg.PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig       `yaml:"kafka"`
	API      APIConfig         `yaml:"api"`
	Kelio    KelioConfig       `yaml:"kelio"`
	Sync     SyncConfig        `yaml:"sync"`
	Workflow WorkflowConfig    `yaml:"workflow"`
	Proposal ProposalConfig    `yaml:"proposal"`
	Scoring  scoring.Config    `yaml:"scoring"`
}

type KafkaConfig struct {
	Bootstrap        *yamlenv.Env[string] `yaml:"bootstrap"`
	ProducerClientID *yamlenv.Env[string] `yaml:"producer_client_id"`
	Topics           struct {
		Notifications  *yamlenv.Env[string] `yaml:"notifications"`
		SyncReports    *yamlenv.Env[string] `yaml:"sync_reports"`
		KelioEmployees *yamlenv.Env[string] `yaml:"kelio_employees"`
	} `yaml:"topics"`
}

type APIConfig struct {
	Port *yamlenv.Env[int] `yaml:"port"`
}

type KelioConfig struct {
	BaseURL       *yamlenv.Env[string] `yaml:"base_url"`
	APIKey        *yamlenv.Env[string] `yaml:"api_key"`
	CallTimeoutMS *yamlenv.Env[int]    `yaml:"call_timeout_ms"`
}

type SyncConfig struct {
	Workers          *yamlenv.Env[int]     `yaml:"workers"`
	FailureTolerance *yamlenv.Env[float64] `yaml:"failure_tolerance"` // failed-batch ratio above which a run is PARTIAL_FAILURE
	AuditRetentionD  *yamlenv.Env[int]     `yaml:"audit_retention_days"`
}

type WorkflowConfig struct {
	LevelsNormal   *yamlenv.Env[int] `yaml:"levels_normal"`
	LevelsHigh     *yamlenv.Env[int] `yaml:"levels_high"`
	LevelsCritical *yamlenv.Env[int] `yaml:"levels_critical"`
	MinCommentLen  *yamlenv.Env[int] `yaml:"min_comment_len"`
	RolesByLevel   []string          `yaml:"roles_by_level"`
}

type ProposalConfig struct {
	MinJustificationLen *yamlenv.Env[int] `yaml:"min_justification_len"`
}

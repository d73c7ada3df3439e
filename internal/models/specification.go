package models

import "time"

/**
 * Probe configuration, used both as init check and running check
 * @property {string} type - Probe type: path/process/tcp/http/redis/mysql/postgres/command
 * @property {string} path - Filesystem path (path)
 * @property {string} process - Process name as listed by ps (process)
 * @property {string} host - Host, rendered through the variable source (tcp/http/redis/mysql/postgres)
 * @property {int} port - Port (tcp/redis/mysql/postgres)
 * @property {string} url - URL, rendered through the variable source (http)
 * @property {int} status - Expected HTTP status, 0 means any 2xx (http)
 * @property {[]string} expect - Response body must contain one of these, empty means no body check (http)
 * @property {string} user - User name (mysql/postgres)
 * @property {string} password - Password (redis/mysql/postgres)
 * @property {string} database - Database name (mysql/postgres)
 * @property {[]string} command - argv, exit status 0 means true (command)
 */
type ProbeSpecification struct {
	Type     string   `mapstructure:"type" json:"type" yaml:"type"`
	Path     string   `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty"`
	Process  string   `mapstructure:"process" json:"process,omitempty" yaml:"process,omitempty"`
	Host     string   `mapstructure:"host" json:"host,omitempty" yaml:"host,omitempty"`
	Port     int      `mapstructure:"port" json:"port,omitempty" yaml:"port,omitempty"`
	URL      string   `mapstructure:"url" json:"url,omitempty" yaml:"url,omitempty"`
	Status   int      `mapstructure:"status" json:"status,omitempty" yaml:"status,omitempty"`
	Expect   []string `mapstructure:"expect" json:"expect,omitempty" yaml:"expect,omitempty"`
	User     string   `mapstructure:"user" json:"user,omitempty" yaml:"user,omitempty"`
	Password string   `mapstructure:"password" json:"password,omitempty" yaml:"password,omitempty"`
	Database string   `mapstructure:"database" json:"database,omitempty" yaml:"database,omitempty"`
	Command  []string `mapstructure:"command" json:"command,omitempty" yaml:"command,omitempty"`
}

/**
 * Command line of an init or start action
 * @property {string} command - Executable
 * @property {[]string} args - Arguments, each rendered through the variable source
 * @property {map[string]string} env - Extra environment, values rendered through the variable source
 * @property {string} workdir - Working directory
 */
type CommandSpecification struct {
	Command string            `mapstructure:"command" json:"command"`
	Args    []string          `mapstructure:"args" json:"args,omitempty"`
	Env     map[string]string `mapstructure:"env" json:"env,omitempty"`
	WorkDir string            `mapstructure:"workdir" json:"workdir,omitempty"`
}

type InitSpecification struct {
	Check  ProbeSpecification   `mapstructure:"check" json:"check"`
	Action CommandSpecification `mapstructure:"action" json:"action"`
}

/**
 * Config artifact: a template rendered to a fixed output path
 * @property {string} name - Artifact name, referenced by services
 * @property {string} template - Template path
 * @property {string} output - Rendered output path
 * @property {uint32} mode - File mode of the output, 0644 when zero
 */
type ArtifactSpecification struct {
	Name     string `mapstructure:"name" json:"name"`
	Template string `mapstructure:"template" json:"template"`
	Output   string `mapstructure:"output" json:"output"`
	Mode     uint32 `mapstructure:"mode" json:"mode,omitempty"`
}

/**
 * Managed service
 * @property {string} name - Service name
 * @property {int} rank - Startup order, lower ranks start first
 * @property {[]string} depends_on - Services that must be running before this one is attempted
 * @property {*InitSpecification} init - One-time initialization, optional
 * @property {ProbeSpecification} running - Liveness/readiness check
 * @property {CommandSpecification} start - Start command, launched in background
 * @property {[]string} artifacts - Names of config artifacts the service reads
 * @property {time.Duration} readiness_timeout - Readiness wait budget
 */
type ServiceSpecification struct {
	Name             string               `mapstructure:"name" json:"name"`
	Rank             int                  `mapstructure:"rank" json:"rank"`
	DependsOn        []string             `mapstructure:"depends_on" json:"depends_on,omitempty"`
	Init             *InitSpecification   `mapstructure:"init" json:"init,omitempty"`
	Running          ProbeSpecification   `mapstructure:"running" json:"running"`
	Start            CommandSpecification `mapstructure:"start" json:"start"`
	Artifacts        []string             `mapstructure:"artifacts" json:"artifacts,omitempty"`
	ReadinessTimeout time.Duration        `mapstructure:"readiness_timeout" json:"readiness_timeout"`
}

type PortRewrite struct {
	From int `mapstructure:"from" json:"from"`
	To   int `mapstructure:"to" json:"to"`
}

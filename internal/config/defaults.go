package config

import (
	"path/filepath"
	"time"

	"stack-keeper/internal/env"
	"stack-keeper/internal/models"
)

// DefaultHostVariables are pinned to the loopback address: the whole stack runs on one host.
var DefaultHostVariables = []string{
	"MYSQL_HOST",
	"REDIS_HOST",
	"MINIO_HOST",
	"INFINITY_HOST",
	"ES_HOST",
	"OS_HOST",
	"TEI_HOST",
	"RAGFLOW_HOST",
}

/**
 * Built-in stack definition
 * @returns {*AppConfig} Configuration describing the database, cache, object store,
 *   document engine, embedding server, proxy, API server and task executor
 * @description
 * - Used as-is when no stack.yaml is found, and as the base a stack.yaml overrides
 * - Templates are read from <home>/templates, rendered configs go to <home>/conf
 */
func Defaults() *AppConfig {
	home := env.KeeperDir
	tpl := func(name string) string { return filepath.Join(home, "templates", name) }
	out := func(name string) string { return filepath.Join(home, "conf", name) }

	return &AppConfig{
		StateDir:          filepath.Join(home, "state"),
		Loopback:          "127.0.0.1",
		HostVariables:     append([]string(nil), DefaultHostVariables...),
		PortRewrites:      []models.PortRewrite{{From: 80, To: 6380}},
		Variables:         map[string]string{},
		ReadinessInterval: time.Second,
		Log: LogConfig{
			Level:   "info",
			Dir:     filepath.Join(home, "logs"),
			Console: true,
		},
		Artifacts: []models.ArtifactSpecification{
			{Name: "service_conf", Template: tpl("service_conf.yaml.template"), Output: out("service_conf.yaml")},
			{Name: "infinity_conf", Template: tpl("infinity_conf.toml.template"), Output: out("infinity_conf.toml")},
			{Name: "nginx_conf", Template: tpl("ragflow.conf.template"), Output: out("nginx/ragflow.conf")},
		},
		Services: []models.ServiceSpecification{
			{
				Name: "mysql",
				Rank: 0,
				Init: &models.InitSpecification{
					Check: models.ProbeSpecification{Type: "path", Path: "/var/lib/mysql/mysql"},
					Action: models.CommandSpecification{
						Command: "mysqld",
						Args:    []string{"--initialize-insecure", "--user=mysql", "--datadir=/var/lib/mysql"},
					},
				},
				Running: models.ProbeSpecification{
					Type:     "mysql",
					Host:     "${MYSQL_HOST:-mysql}",
					Port:     3306,
					User:     "root",
					Password: "${MYSQL_PASSWORD:-infini_rag_flow}",
				},
				Start: models.CommandSpecification{
					Command: "mysqld",
					Args:    []string{"--user=mysql", "--datadir=/var/lib/mysql", "--port=${MYSQL_PORT:-3306}"},
				},
				ReadinessTimeout: 60 * time.Second,
			},
			{
				Name: "redis",
				Rank: 0,
				Running: models.ProbeSpecification{
					Type:     "redis",
					Host:     "${REDIS_HOST:-redis}",
					Port:     6379,
					Password: "${REDIS_PASSWORD:-infini_rag_flow}",
				},
				Start: models.CommandSpecification{
					Command: "redis-server",
					Args:    []string{"--port", "6379", "--requirepass", "${REDIS_PASSWORD:-infini_rag_flow}"},
				},
				ReadinessTimeout: 30 * time.Second,
			},
			{
				Name: "minio",
				Rank: 0,
				Init: &models.InitSpecification{
					Check:  models.ProbeSpecification{Type: "path", Path: "/var/lib/minio/data"},
					Action: models.CommandSpecification{Command: "mkdir", Args: []string{"-p", "/var/lib/minio/data"}},
				},
				Running: models.ProbeSpecification{
					Type: "http",
					URL:  "http://${MINIO_HOST:-minio}:9000/minio/health/live",
				},
				Start: models.CommandSpecification{
					Command: "minio",
					Args:    []string{"server", "/var/lib/minio/data", "--address", ":9000", "--console-address", ":9001"},
					Env: map[string]string{
						"MINIO_ROOT_USER":     "${MINIO_USER:-rag_flow}",
						"MINIO_ROOT_PASSWORD": "${MINIO_PASSWORD:-infini_rag_flow}",
					},
				},
				ReadinessTimeout: 60 * time.Second,
			},
			{
				Name: "infinity",
				Rank: 0,
				Init: &models.InitSpecification{
					Check:  models.ProbeSpecification{Type: "path", Path: "/var/infinity"},
					Action: models.CommandSpecification{Command: "mkdir", Args: []string{"-p", "/var/infinity"}},
				},
				Running: models.ProbeSpecification{
					Type:   "http",
					URL:    "http://${INFINITY_HOST:-infinity}:${INFINITY_HTTP_PORT:-23820}/admin/node/current",
					Expect: []string{`"status":"started"`, `"status":"alive"`},
				},
				Start: models.CommandSpecification{
					Command: "infinity",
					Args:    []string{"--config=" + out("infinity_conf.toml")},
				},
				Artifacts: []string{"infinity_conf"},
				// 24 x 5s
				ReadinessTimeout: 120 * time.Second,
			},
			{
				Name: "tei",
				Rank: 0,
				Running: models.ProbeSpecification{
					Type: "http",
					URL:  "http://${TEI_HOST:-tei}:${TEI_PORT:-6381}/health",
				},
				Start: models.CommandSpecification{
					Command: "text-embeddings-router",
					Args:    []string{"--model-id", "${TEI_MODEL:-BAAI/bge-small-en-v1.5}", "--port", "${TEI_PORT:-6381}"},
				},
				ReadinessTimeout: 300 * time.Second,
			},
			{
				Name:      "ragflow_server",
				Rank:      1,
				DependsOn: []string{"mysql", "redis", "minio", "infinity", "tei"},
				Init: &models.InitSpecification{
					Check: models.ProbeSpecification{Type: "path", Path: filepath.Join(home, "state", "schema.seeded")},
					Action: models.CommandSpecification{
						Command: "sh",
						Args: []string{"-c", "python3 api/db/init_data.py && touch " +
							filepath.Join(home, "state", "schema.seeded")},
						WorkDir: "${RAGFLOW_HOME:-/ragflow}",
					},
				},
				Running: models.ProbeSpecification{Type: "tcp", Host: "${RAGFLOW_HOST:-ragflow}", Port: 9380},
				Start: models.CommandSpecification{
					Command: "python3",
					Args:    []string{"api/ragflow_server.py"},
					Env: map[string]string{
						"PYTHONPATH":        "${RAGFLOW_HOME:-/ragflow}",
						"RAGFLOW_CONF_PATH": out("service_conf.yaml"),
					},
					WorkDir: "${RAGFLOW_HOME:-/ragflow}",
				},
				Artifacts:        []string{"service_conf"},
				ReadinessTimeout: 120 * time.Second,
			},
			{
				Name:      "task_executor",
				Rank:      2,
				DependsOn: []string{"ragflow_server"},
				Running:   models.ProbeSpecification{Type: "process", Process: "rag/svr/task_executor.py"},
				Start: models.CommandSpecification{
					Command: "python3",
					Args:    []string{"rag/svr/task_executor.py", "0"},
					Env: map[string]string{
						"PYTHONPATH":        "${RAGFLOW_HOME:-/ragflow}",
						"RAGFLOW_CONF_PATH": out("service_conf.yaml"),
					},
					WorkDir: "${RAGFLOW_HOME:-/ragflow}",
				},
				Artifacts:        []string{"service_conf"},
				ReadinessTimeout: 30 * time.Second,
			},
			{
				Name:      "nginx",
				Rank:      2,
				DependsOn: []string{"ragflow_server"},
				Running:   models.ProbeSpecification{Type: "tcp", Host: "127.0.0.1", Port: 80},
				Start: models.CommandSpecification{
					Command: "nginx",
					Args:    []string{"-c", out("nginx/ragflow.conf"), "-g", "daemon off;"},
				},
				Artifacts:        []string{"nginx_conf"},
				ReadinessTimeout: 30 * time.Second,
			},
		},
	}
}

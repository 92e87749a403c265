package main

import (
	"fmt"

	"github.com/tilsley/scmreader/pkg/fakebitbucket"
)

type envCfg struct {
	replicas string
	tag      string
}

var appEnvs = map[string]map[string]envCfg{
	"billing-api": {
		"dev":     {replicas: "1", tag: "dev-latest"},
		"staging": {replicas: "2", tag: "v1.2.0"},
		"prod":    {replicas: "3", tag: "v1.1.0"},
	},
	"user-service": {
		"dev":     {replicas: "1", tag: "dev-latest"},
		"staging": {replicas: "2", tag: "v2.0.0-rc1"},
		"prod":    {replicas: "3", tag: "v1.9.0"},
	},
}

// seedRepos commits demo content into PLAT/gitops and one PLAT repo per app.
// Each app lands as its own commit so the gitops history has some depth.
func seedRepos(s *fakebitbucket.Store) {
	for _, app := range []string{"billing-api", "user-service"} {
		s.Commit("PLAT", "gitops", gitopsFiles(app))
		s.Commit("PLAT", app, map[string]string{
			"catalog-info.yaml":        catalogInfo(app),
			"docs/index.md":            fmt.Sprintf("# %s\n\nOwned by the platform team.\n", app),
			".github/workflows/ci.yml": ciWorkflow(),
		})
	}
}

func gitopsFiles(app string) map[string]string {
	files := map[string]string{
		fmt.Sprintf("apps/%s/base/application.yaml", app):     baseApplication(app),
		fmt.Sprintf("apps/%s/base/service-monitor.yaml", app): serviceMonitor(app),
	}
	for env, cfg := range appEnvs[app] {
		files[fmt.Sprintf("apps/%s/overlays/%s/values.yaml", app, env)] = envValues(env, cfg)
	}
	return files
}

func baseApplication(app string) string {
	return fmt.Sprintf(`apiVersion: argoproj.io/v1alpha1
kind: Application
metadata:
  name: %s
  namespace: argocd
spec:
  project: default
  source:
    repoURL: https://charts.example.com/generic
    chart: generic-app
    targetRevision: 1.0.0
  destination:
    server: https://kubernetes.default.svc
  syncPolicy:
    automated:
      prune: true
      selfHeal: true
`, app)
}

func envValues(env string, cfg envCfg) string {
	return fmt.Sprintf(`replicaCount: %s
image:
  tag: %q
namespace: %s
`, cfg.replicas, cfg.tag, env)
}

func serviceMonitor(app string) string {
	return fmt.Sprintf(`apiVersion: monitoring.coreos.com/v1
kind: ServiceMonitor
metadata:
  name: %s
  namespace: monitoring
spec:
  selector:
    matchLabels:
      app: %s
  endpoints:
    - port: metrics
      interval: 30s
`, app, app)
}

func catalogInfo(app string) string {
	return fmt.Sprintf(`apiVersion: backstage.io/v1alpha1
kind: Component
metadata:
  name: %s
spec:
  type: service
  lifecycle: production
  owner: platform
`, app)
}

func ciWorkflow() string {
	return `name: CI
on:
  push:
    branches: [main]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - run: make build test
`
}

package commands

import (
	goversion "github.com/caarlos0/go-version"
)

func BuildVersion(version, commit, date, treeState string) goversion.Info {
	return goversion.GetVersionInfo(
		goversion.WithAppDetails("accounts-server", "User accounts and token authentication server", "https://gisquick.org"),
		func(i *goversion.Info) {
			if commit != "" {
				i.GitCommit = commit
			}
			if version != "" {
				i.GitVersion = version
			}
			if treeState != "" {
				i.GitTreeState = treeState
			}
			if date != "" {
				i.BuildDate = date
			}
		},
	)
}

package operations

import (
	"github.com/cheynewallace/tabby"
	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/scm"
	"github.com/urfave/cli"
)

// List displays the repository database.
func List() cli.Command {
	return cli.Command{
		Name:  "list",
		Usage: "display the repositories in the repository database",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  repoDBFlagName,
				Usage: "path to the repository database file",
			},
			cli.BoolFlag{
				Name:  allFlagName,
				Usage: "include repositories that are not part of the manifest",
			},
		},
		Action: func(c *cli.Context) error {
			settings, err := loadSettings(c)
			if err != nil {
				return err
			}
			return runList(settings, c.Bool(allFlagName))
		},
	}
}

func runList(settings *bomtool.Settings, includeAll bool) error {
	db, err := loadDatabase(settings)
	if err != nil {
		return err
	}

	t := tabby.New()
	t.AddHeader("REPOSITORY", "SERVICE", "OWNER", "HOSTNAME", "IN BOM")
	for _, name := range db.RepositoryNames() {
		entry, err := db.MergedEntry(name)
		if err != nil {
			return err
		}
		if !includeAll && !entry.InBOM {
			continue
		}

		marker := ""
		if entry.InBOM {
			marker = "*"
		}
		t.AddLine(name, db.ServiceName(name), entry.Owner, entry.OriginHostname, marker)
	}
	t.Print()

	return nil
}

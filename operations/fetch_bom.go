package operations

import (
	"context"

	"github.com/evergreen-ci/bomtool"
	"github.com/evergreen-ci/bomtool/publish"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/urfave/cli"
)

// FetchBOM retrieves a published manifest by version and writes it to a
// local file.
func FetchBOM() cli.Command {
	return cli.Command{
		Name:  "fetch-bom",
		Usage: "retrieve a published manifest by version and write it locally",
		Flags: addPathFlag(addServiceFlag(
			cli.StringFlag{
				Name:  versionFlagName,
				Usage: "version of the manifest to retrieve",
			},
			cli.StringFlag{
				Name:  outputDirFlagName,
				Usage: "directory to write output files into",
			},
		)...),
		Before: requireStringFlag(versionFlagName),
		Action: func(c *cli.Context) error {
			settings, err := loadSettings(c)
			if err != nil {
				return err
			}
			publisher, err := publish.NewServiceClient(settings)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			return runFetchBOM(ctx, settings, publisher, c.String(versionFlagName), c.String(pathFlagName))
		},
	}
}

func runFetchBOM(ctx context.Context, settings *bomtool.Settings, publisher publish.Publisher, version, path string) error {
	doc, err := publisher.RetrieveBOMVersion(ctx, version)
	if err != nil {
		return err
	}

	out := manifestOutputPath(settings, path, doc.Version)
	if err := doc.Write(out); err != nil {
		return err
	}
	grip.Info(message.Fields{
		"message": "fetched manifest",
		"version": doc.Version,
		"path":    out,
	})
	return nil
}

package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/shoplist-e2e/pkg/scenario"
)

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List the scenarios and their tags",
	Description: `Print the scenario catalog. The same selection flags as "test" apply,
so this shows what a run would execute.

Examples:
  shoplist-e2e list
  shoplist-e2e list --include-tags smoke
  shoplist-e2e list --run gmail`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only list scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Hide scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "run",
			Usage: "Only list these scenarios (name, suite/name or suite)",
		},
	},
	Action: runList,
}

func runList(c *cli.Context) error {
	all := scenario.Catalog()
	selected := scenario.Filter(all, c.StringSlice("include-tags"), c.StringSlice("exclude-tags"), c.StringSlice("run"))
	printScenarios(selected)
	fmt.Fprintf(stdout, "\n  %d of %d scenarios (tags: %s)\n", len(selected), len(all), strings.Join(scenario.Tags(all), ", "))
	return nil
}

func printScenarios(scenarios []scenario.Scenario) {
	suite := ""
	for _, sc := range scenarios {
		if sc.Suite != suite {
			suite = sc.Suite
			fmt.Fprintf(stdout, "\n  %s\n", bold(suite))
		}
		fmt.Fprintf(stdout, "    %-36s %s\n", sc.Name, cyan(strings.Join(sc.Tags, ",")))
		if sc.Description != "" {
			fmt.Fprintf(stdout, "      %s\n", gray(sc.Description))
		}
	}
}

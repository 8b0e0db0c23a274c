package main

import (
	"os"

	"github.com/GoPolymarket/fundgate/internal/pkg/logger"
	"github.com/urfave/cli"
)

var (
	revisionFlag = cli.Int64Flag{
		Name:  "revision",
		Usage: "settings revision the signature publishes",
		Value: 1,
	}
	chainIDFlag = cli.Int64Flag{
		Name:   "chain-id",
		Usage:  "EIP-712 domain chain id",
		Value:  137,
		EnvVar: "FUNDGATE_CHAIN_CHAIN_ID",
	}
	registryFlag = cli.StringFlag{
		Name:   "registry",
		Usage:  "EIP-712 verifying contract `address`",
		Value:  "0x0000000000000000000000000000000000000000",
		EnvVar: "FUNDGATE_CHAIN_REGISTRY_ADDRESS",
	}
	keyFlag = cli.StringFlag{
		Name:   "key",
		Usage:  "hex private `key` of the signing manager or governor",
		EnvVar: "FUNDCTL_PRIVATE_KEY",
	}
)

func main() {
	logger.Init("warn", "text")

	app := cli.NewApp()
	app.Name = "fundctl"
	app.Usage = "validate, hash and sign fund settings documents offline"
	app.Version = "v0.1.0"
	app.Commands = []cli.Command{
		{
			Name:      "validate",
			Usage:     "check a settings document and print the report",
			ArgsUsage: "FILE",
			Action: func(c *cli.Context) error {
				return runValidate(c.App.Writer, c.Args().First())
			},
		},
		{
			Name:      "digest",
			Usage:     "print the EIP-712 digest for a settings revision",
			ArgsUsage: "FILE",
			Flags:     []cli.Flag{revisionFlag, chainIDFlag, registryFlag},
			Action: func(c *cli.Context) error {
				return runDigest(c.App.Writer, c.Args().First(), domainArgs{
					revision: c.Int64(revisionFlag.Name),
					chainID:  c.Int64(chainIDFlag.Name),
					registry: c.String(registryFlag.Name),
				})
			},
		},
		{
			Name:      "sign",
			Usage:     "sign a settings revision with a local key",
			ArgsUsage: "FILE",
			Flags:     []cli.Flag{keyFlag, revisionFlag, chainIDFlag, registryFlag},
			Action: func(c *cli.Context) error {
				return runSign(c.App.Writer, c.Args().First(), c.String(keyFlag.Name), domainArgs{
					revision: c.Int64(revisionFlag.Name),
					chainID:  c.Int64(chainIDFlag.Name),
					registry: c.String(registryFlag.Name),
				})
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		logger.Error(err.Error())
		os.Exit(1)
	}
}

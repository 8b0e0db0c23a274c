package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/signer"
	"github.com/GoPolymarket/fundgate/internal/validate"
	"github.com/urfave/cli"
)

type domainArgs struct {
	revision int64
	chainID  int64
	registry string
}

type digestOutput struct {
	model.DigestResponse
	Signer    string `json:"signer,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// loadSettings reads and validates FILE. Validation failures become an
// exit-status-1 error carrying the field report.
func loadSettings(path string) (model.FundSettings, []validate.FieldError, error) {
	if path == "" {
		return model.FundSettings{}, nil, cli.NewExitError("missing FILE argument", 2)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.FundSettings{}, nil, fmt.Errorf("read %s: %w", path, err)
	}
	fs, err := validate.JSON(data)
	var vErr *validate.ValidationError
	if errors.As(err, &vErr) {
		return fs, vErr.Errors(), nil
	}
	return fs, nil, err
}

func runValidate(w io.Writer, path string) error {
	_, problems, err := loadSettings(path)
	if err != nil {
		return err
	}
	report := model.ValidationReport{Valid: len(problems) == 0}
	if !report.Valid {
		report.Errors = problems
	}
	if err := writeJSON(w, report); err != nil {
		return err
	}
	if !report.Valid {
		return cli.NewExitError("", 1)
	}
	return nil
}

func runDigest(w io.Writer, path string, args domainArgs) error {
	out, _, err := prepare(path, args)
	if err != nil {
		return err
	}
	return writeJSON(w, out)
}

func runSign(w io.Writer, path, key string, args domainArgs) error {
	if key == "" {
		return cli.NewExitError("missing --key", 2)
	}
	out, update, err := prepare(path, args)
	if err != nil {
		return err
	}
	domain, err := signer.NewDomain(args.chainID, args.registry)
	if err != nil {
		return err
	}
	s, err := signer.NewSigner(key, domain)
	if err != nil {
		return err
	}
	sig, err := s.SignUpdate(update)
	if err != nil {
		return err
	}
	out.Signer = s.Address().Hex()
	out.Signature = sig
	return writeJSON(w, out)
}

func prepare(path string, args domainArgs) (*digestOutput, *signer.Update, error) {
	if args.revision < 1 {
		return nil, nil, cli.NewExitError("--revision must be at least 1", 2)
	}
	fs, problems, err := loadSettings(path)
	if err != nil {
		return nil, nil, err
	}
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintln(os.Stderr, p.Error())
		}
		return nil, nil, cli.NewExitError("settings are invalid", 1)
	}
	domain, err := signer.NewDomain(args.chainID, args.registry)
	if err != nil {
		return nil, nil, err
	}
	update, err := signer.NewUpdate(fs, args.revision)
	if err != nil {
		return nil, nil, err
	}
	return &digestOutput{
		DigestResponse: model.DigestResponse{
			FundAddress:  update.Fund.Hex(),
			Revision:     args.revision,
			SettingsHash: update.SettingsHash.Hex(),
			Digest:       domain.Digest(update).Hex(),
			ChainID:      args.chainID,
		},
	}, update, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

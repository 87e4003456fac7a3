package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"townchat/backend/internal/auth"
	"townchat/backend/internal/config"
	"townchat/backend/internal/models"
	"townchat/backend/internal/storage"
)

const usage = `Usage: admin [--config file] <command> [args]

Commands:
  add-user <user_id> <first_name> [last_name] [pfp_url]
  create-document <creator_id> <title> [tags...]
  set-document-status <document_id> <pending|signed|rejected>
  signers <document_id>
  delete-document <document_id>
  delete-room <room_id>
  token <user_id> [ttl_hours]
`

func main() {
	flags := pflag.NewFlagSet("admin", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to a config file")
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		fmt.Print(usage)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// token needs no database.
	if args[0] == "token" {
		if err := issueToken(os.Stdout, auth.NewIssuer(cfg.Auth), args[1:]); err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		return
	}

	db, err := storage.OpenPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	storageSvc := storage.NewStorageService(db)

	if err := runCommand(context.Background(), os.Stdout, storageSvc, args); err != nil {
		log.Fatalf("Error running %s: %v", args[0], err)
	}
}

type usageError string

func (e usageError) Error() string { return "usage: admin " + string(e) }

func runCommand(ctx context.Context, out io.Writer, s storage.Storage, args []string) error {
	command, args := args[0], args[1:]

	switch command {
	case "add-user":
		if len(args) < 2 || len(args) > 4 {
			return usageError("add-user <user_id> <first_name> [last_name] [pfp_url]")
		}
		user := &models.User{ID: args[0], FirstName: args[1]}
		if len(args) > 2 {
			user.LastName = args[2]
		}
		if len(args) > 3 {
			user.Pfp = args[3]
		}
		if err := s.SaveUser(ctx, user); err != nil {
			return err
		}
		fmt.Fprintf(out, "User %s saved.\n", user.ID)

	case "create-document":
		if len(args) < 2 {
			return usageError("create-document <creator_id> <title> [tags...]")
		}
		doc := &models.Document{CreatorID: args[0], Title: args[1], Tags: args[2:]}
		if err := s.CreateDocument(ctx, doc); err != nil {
			return err
		}
		fmt.Fprintf(out, "Document %s created.\n", doc.ID)

	case "set-document-status":
		if len(args) != 2 {
			return usageError("set-document-status <document_id> <pending|signed|rejected>")
		}
		if err := s.SetDocumentStatus(ctx, args[0], models.DocumentStatus(args[1])); err != nil {
			return err
		}
		fmt.Fprintf(out, "Document %s is now %s.\n", args[0], args[1])

	case "signers":
		if len(args) != 1 {
			return usageError("signers <document_id>")
		}
		rows, err := s.SigningStatuses(ctx, args[0])
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "No signers yet.")
		}
		for _, row := range rows {
			fmt.Fprintf(out, "%s\t%s\t%s\n", row.UserID, row.Status, row.UpdatedAt.UTC().Format(time.RFC3339))
		}

	case "delete-document":
		if len(args) != 1 {
			return usageError("delete-document <document_id>")
		}
		if err := s.DeleteDocument(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Document %s has been deleted.\n", args[0])

	case "delete-room":
		if len(args) != 1 {
			return usageError("delete-room <room_id>")
		}
		if err := s.DeleteRoom(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Room %s has been deleted.\n", args[0])

	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func issueToken(out io.Writer, issuer *auth.Issuer, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("token <user_id> [ttl_hours]")
	}
	ttl := 24 * time.Hour
	if len(args) == 2 {
		hours, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid ttl %q: %w", args[1], err)
		}
		ttl = time.Duration(hours) * time.Hour
	}
	token, err := issuer.Issue(strings.TrimSpace(args[0]), ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

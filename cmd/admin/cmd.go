package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"
	"gorm.io/gorm"

	"chez-meme/config"
	"chez-meme/services"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *gorm.DB
	auth      *services.AuthService
	distances *services.DistanceService
	seed      services.SeedOptions
	uploadDir string
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate                                    - create or upgrade the tables")
	fmt.Fprintln(cli.out, "  seed                                       - create the admin and the default activities")
	fmt.Fprintln(cli.out, "  createadmin -username NAME -email EMAIL    - create an admin or rotate its password")
	fmt.Fprintln(cli.out, "  resetpassword -username NAME               - change an admin's password")
	fmt.Fprintln(cli.out, "  forceadmin -username NAME -email EMAIL     - drop and recreate an admin account")
	fmt.Fprintln(cli.out, "  reloadphotos [-dir DIR]                    - rebuild the photo table from a directory")
	fmt.Fprintln(cli.out, "  distances                                  - recompute drive times to the surf spots")
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch args[1] {
	case "migrate":
		if err := config.Migrate(cli.db); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "schema up to date")
		return nil

	case "seed":
		generated, err := services.SeedDefaults(ctx, cli.db, cli.seed)
		if err != nil {
			return err
		}
		if generated != "" {
			fmt.Fprintf(cli.out, "admin %s created with password %s\n", cli.seed.AdminUsername, generated)
		}
		n, err := cli.auth.CountAdmins(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%d admin account(s)\n", n)
		return nil

	case "createadmin", "forceadmin":
		cmd := flag.NewFlagSet(args[1], flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		uname := cmd.String("username", cli.seed.AdminUsername, "The admin's username. The password will be prompted next.")
		email := cmd.String("email", cli.seed.AdminEmail, "The admin's email.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		if args[1] == "forceadmin" {
			if _, err := cli.auth.ForceAdmin(ctx, *uname, *email, pwd); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "admin %s recreated\n", *uname)
			return nil
		}
		_, created, err := cli.auth.EnsureAdmin(ctx, *uname, *email, pwd)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cli.out, "admin %s created\n", *uname)
		} else {
			fmt.Fprintf(cli.out, "admin %s updated\n", *uname)
		}
		return nil

	case "resetpassword":
		cmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		uname := cmd.String("username", "", "The admin's username. The password will be prompted next.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.auth.SetPassword(ctx, *uname, pwd)

	case "reloadphotos":
		cmd := flag.NewFlagSet("reloadphotos", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		dir := cmd.String("dir", cli.uploadDir, "Directory holding the apartment photos.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		n, err := services.ReloadPhotos(ctx, cli.db, *dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%d photos loaded from %s\n", n, *dir)
		return nil

	case "distances":
		n, err := cli.distances.UpdateSurfSpots(ctx)
		fmt.Fprintf(cli.out, "%d surf spots updated\n", n)
		if n == 0 && err != nil {
			return err
		}
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

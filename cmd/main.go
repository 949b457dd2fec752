package main

import (
	"errors"
	"fmt"
	"os"

	commands "github.com/gisquick/accounts-server/cmd/commands"
	"github.com/joho/godotenv"
)

// set by linker flags
var (
	version   = ""
	commit    = ""
	date      = ""
	treeState = ""
)

func printCommandsList() {
	fmt.Println("Commands:")
	fmt.Println("  serve")
	fmt.Println("  adduser")
	fmt.Println("  createsuperuser")
	fmt.Println("  dumpusers")
	fmt.Println("  loadusers")
	fmt.Println("  deleteuser")
	fmt.Println("  migrate")
	fmt.Println("  version")
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env file: %s\n", err)
		os.Exit(1)
	}
	if len(os.Args) < 2 {
		printCommandsList()
		return
	}
	cmd := os.Args[1]
	os.Args = os.Args[1:]

	switch cmd {
	case "adduser":
		runCommand(commands.AddUser)
	case "deleteuser":
		runCommand(commands.DeleteUser)
	case "createsuperuser", "addsuperuser":
		runCommand(commands.AddSuperuser)
	case "dumpusers":
		runCommand(commands.DumpUsers)
	case "loadusers":
		runCommand(commands.LoadUsers)
	case "serve":
		runCommand(commands.Serve)
	case "migrate":
		runCommand(commands.Migrate)
	case "version":
		fmt.Println(commands.BuildVersion(version, commit, date, treeState).String())
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printCommandsList()
		os.Exit(2)
	}
}

func runCommand(command func() error) {
	if err := command(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

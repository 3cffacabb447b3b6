package main

import (
	"fmt"
	"io"
)

// printUsage prints the main usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mailmerge <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  merge      Merge a Word template with spreadsheet records")
	fmt.Fprintln(w, "  serve      Run the HTTP service")
	fmt.Fprintln(w, "  doctor     Check Chrome, pandoc and the environment")
	fmt.Fprintln(w, "  version    Show version information")
	fmt.Fprintln(w, "  help       Show help for a command")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'mailmerge help <command>' for details on a specific command.")
}

// printMergeUsage prints usage for the merge command.
func printMergeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mailmerge merge -t <template.docx> -d <data.xlsx> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Fill {{column}} fields of the template with each spreadsheet row.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -t, --template <path>     Word template (.docx)")
	fmt.Fprintln(w, "  -d, --data <path>         Spreadsheet (.xlsx, .xlsm), first row is the header")
	fmt.Fprintln(w, "  -o, --output <dir>        Output directory (default .)")
	fmt.Fprintln(w, "      --pdf                 Produce PDF instead of Word")
	fmt.Fprintln(w, "  -m, --multiple            One file per record instead of one combined file")
	fmt.Fprintln(w, "      --timestamp <s>       Name timestamp: YYYY, MM, DD, HH, mm, ss or a preset")
	printRenderUsage(w)
	printCommonUsage(w)
}

// printServeUsage prints usage for the serve command.
func printServeUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mailmerge serve [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Serve the upload, merge and download API until interrupted.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Server:")
	fmt.Fprintln(w, "      --addr <addr>         Listen address (default :10000)")
	fmt.Fprintln(w, "      --max-upload-mb <n>   Request body limit in MiB (default 50)")
	fmt.Fprintln(w, "      --max-sessions <n>    Live sessions before the oldest is evicted (default 50)")
	fmt.Fprintln(w, "      --work-dir <dir>      Session files directory (default: new temp dir)")
	printRenderUsage(w)
	printCommonUsage(w)
}

func printRenderUsage(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Rendering:")
	fmt.Fprintln(w, "      --engines <list>      Renderer order: chrome,pandoc")
	fmt.Fprintln(w, "      --timeout <d>         Timeout per renderer attempt (e.g., 30s, 2m)")
	fmt.Fprintln(w, "  -w, --workers <n>         Concurrent conversions (0 = auto)")
	fmt.Fprintln(w, "      --style <name>        Stylesheet name")
	fmt.Fprintln(w, "      --asset-path <dir>    Custom asset directory")
	fmt.Fprintln(w, "      --pandoc <bin>        Pandoc binary")
	fmt.Fprintln(w, "      --pdf-engine <name>   Pandoc --pdf-engine (fallback pdflatex)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Page:")
	fmt.Fprintln(w, "  -p, --page-size <s>       Page size: letter, a4, legal")
	fmt.Fprintln(w, "      --orientation <s>     Orientation: portrait, landscape")
	fmt.Fprintln(w, "      --margin <f>          Margin in inches (0.25-3.0)")
}

func printCommonUsage(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "General:")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show debug logs")
}

// runHelp prints help for a specific command.
func runHelp(args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stdout)
		return ExitSuccess
	}

	switch args[0] {
	case "merge":
		printMergeUsage(env.Stdout)
	case "serve":
		printServeUsage(env.Stdout)
	case "doctor":
		fmt.Fprintln(env.Stdout, "Usage: mailmerge doctor [--json]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Check PDF engines and the environment.")
	case "version":
		fmt.Fprintln(env.Stdout, "Usage: mailmerge version")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show version information.")
	case "help":
		fmt.Fprintln(env.Stdout, "Usage: mailmerge help [command]")
		fmt.Fprintln(env.Stdout)
		fmt.Fprintln(env.Stdout, "Show help for a command.")
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", args[0])
		printUsage(env.Stderr)
		return ExitUsage
	}
	return ExitSuccess
}

// Command jal-effects prints the declared effect of every instruction of a
// listing, or of the lines given on the command line.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	jal "github.com/PeyaPeyaPeyang/LangJAL-sub000"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/listing"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/report"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

func main() {
	desc := flag.String("desc", "()V", "method descriptor used with -e")
	static := flag.Bool("static", true, "treat the -e method as static")
	expr := flag.String("e", "", "instructions separated by ';' instead of a listing file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: jal-effects [-e 'insn; insn' [-desc D] [-static]] [listing.yaml ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *expr != "" {
		m, err := verifier.NewMethod("Inline", "inline", *desc, *static)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jal-effects: %v\n", err)
			os.Exit(2)
		}
		for i, line := range strings.Split(*expr, ";") {
			if err := jal.EmitLine(m, line, i+1); err != nil {
				fmt.Printf("%3d: %-30s error: %v\n", i, strings.TrimSpace(line), err)
			}
		}
		if err := report.WriteEffects(os.Stdout, m); err != nil {
			fmt.Fprintf(os.Stderr, "jal-effects: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	status := 0
	for _, path := range flag.Args() {
		c, err := listing.LoadFile(path)
		if err != nil {
			fmt.Fprint(os.Stderr, report.FormatErrors([]error{err}))
			status = 1
			continue
		}
		for _, m := range c.Methods {
			fmt.Println()
			if err := report.WriteEffects(os.Stdout, m); err != nil {
				fmt.Fprintf(os.Stderr, "jal-effects: %v\n", err)
				os.Exit(1)
			}
		}
	}
	os.Exit(status)
}

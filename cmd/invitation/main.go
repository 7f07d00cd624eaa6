// Command invitation mints a single-use registration invitation and prints
// the code for the operator to hand out.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nodepilot/custodian/pkg/store"
	"github.com/nodepilot/custodian/pkg/utils"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "usage: invitation <memo>")
		fmt.Fprintln(os.Stderr, "the memo specifies who the invitation is for")
		os.Exit(1)
	}
	memo := os.Args[1]

	st, err := store.Open(filepath.Join(utils.Env("DATA_DIR", "./data"), "custodian.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	inv, err := st.MintInvitation(memo)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mint invitation:", err)
		os.Exit(1)
	}
	fmt.Printf("Invitation for %s:\n\n%s\n", memo, inv.Code)
}

// Command introducer loads a shared library into a running process.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/xyproto/introducer"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: introducer <pid> --lib-path <path>\n")
		flag.PrintDefaults()
	}

	libPath := flag.String("lib-path", "", "path of the library to load into the target (made absolute against the current directory)")
	flag.Parse()

	if flag.NArg() != 1 || *libPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	id, err := strconv.Atoi(flag.Arg(0))
	if err != nil {
		log.Fatalf("introducer: invalid pid %q: %v", flag.Arg(0), err)
	}

	if err := introducer.Introduce(id, *libPath); err != nil {
		log.Fatalf("introducer: %v", err)
	}

	fmt.Println("Successful intruduction!")
}

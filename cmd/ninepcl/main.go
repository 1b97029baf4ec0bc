// Command ninepcl issues a single ls, cat, or stat against a 9P
// server and exits.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ninefs/ninep/client"
	"github.com/ninefs/ninep/wire"
)

func main() {
	var (
		addr  = flag.String("addr", "tcp!127.0.0.1:564", "server address, as network!address")
		uname = flag.String("user", "glenda", "user name to attach as")
		aname = flag.String("aname", "", "attach name (export path)")
		dotu  = flag.Bool("dotu", true, "negotiate the 9P2000.u extension")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] ls|cat|stat path\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, path := flag.Arg(0), flag.Arg(1)

	c, err := client.Dial(*addr, client.Options{Uname: *uname, Aname: *aname, Dotu: *dotu})
	if err != nil {
		fmt.Fprintln(os.Stderr, "ninepcl:", err)
		os.Exit(1)
	}
	defer c.Close()

	switch cmd {
	case "ls":
		err = ls(c, path)
	case "cat":
		err = cat(c, path)
	case "stat":
		err = stat(c, path)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ninepcl: %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func ls(c *client.Client, path string) error {
	dirs, err := c.Ls(path)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		suffix := ""
		if d.Mode&wire.DMDIR != 0 {
			suffix = "/"
		}
		fmt.Printf("%s%s\n", d.Name, suffix)
	}
	return nil
}

func cat(c *client.Client, path string) error {
	f, err := c.Open(path, wire.OREAD)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(os.Stdout, f)
	return err
}

func stat(c *client.Client, path string) error {
	d, err := c.Stat(path)
	if err != nil {
		return err
	}
	fmt.Println(d.LongString())
	return nil
}

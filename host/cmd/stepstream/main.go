// Command stepstream drives the virtual output port from a host: it runs the
// engine against simulated hardware, inspects recorded traces, talks to the
// firmware console and bit-bangs a static shift register chain.
package main

func main() {
	Execute()
}

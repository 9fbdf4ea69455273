package must

// NilErr panics on errors that can only come from a programming mistake,
// such as a constructor rejecting a fixed-size argument.
func NilErr(err error) {
	if nil != err {
		panic("unexpected error: " + err.Error())
	}
}

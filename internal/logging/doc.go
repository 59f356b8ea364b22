// Package logging provides arbor's opt-in rotating file logger. An
// embedding application that wants durable, greppable logs for a long-
// lived Arbor handle passes arbor.WithFileLogging(cfg), which calls Setup
// and runs the returned cleanup func on Arbor.Close to flush and close the
// file. A logger built with Setup and passed through arbor.WithLogger
// instead leaves calling the cleanup func to the caller.
package logging

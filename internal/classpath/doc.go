// Package classpath resolves a package namespace against an explicit list of
// class path roots and collects the compiled class files beneath it.
//
// Roots are consulted in the order given. A directory root maps the
// namespace "com.example" to root/com/example and is walked depth first in
// lexical order; each subdirectory appends a segment to the namespace of the
// files beneath it. Symlinked subdirectories are followed unless they lead
// back into the directory being walked. An archive root (.jar, .zip, .war) is searched for
// members under the prefix "com/example/", listed in the same order a
// directory root would give.
//
// A namespace missing from a root contributes no candidates and is not an
// error. Identical classes reachable through several roots are all returned.
package classpath

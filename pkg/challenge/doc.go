// Package challenge defines the captcha challenge surfaces the gateway
// fronts and the artifacts used to satisfy them.
//
// A Kind identifies which upstream surface a captured HAR evidence file
// belongs to (chat v3, chat v4, auth, platform). The Cache holds request
// templates parsed from those HAR files, keyed by file path, so repeated
// challenge flows do not re-parse the evidence on every request. When an
// evidence file changes on disk, the watch dispatcher calls Cache.Clear
// with the changed path and the template is re-parsed lazily on next use.
//
// Solver is an opaque handle describing an external captcha solving
// service. This package carries it through configuration without
// interpreting it; the solving protocol lives outside this module.
package challenge

// Package relay implements the trigger evaluation and action dispatch
// engine. A relay document declares triggers (files observed for read-access
// events whose content resolves to a semantic value) and actions (consumers
// that translate a trigger's value into content written to glob-selected
// target files). The engine installs one watch per trigger, routes incoming
// events to the owning handler, and fans changed values out to every bound
// action.
package relay

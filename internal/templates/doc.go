// Package templates locates export templates for the renderers.
//
// # Loader Architecture
//
//	Loader (interface)
//	    │
//	    ├── EmbeddedLoader    - built-in templates compiled into the binary
//	    ├── FilesystemLoader  - templates from a directory on disk
//	    └── Catalog           - custom first, embedded as fallback
//
// # Directory Structure
//
// Templates are organized by kind, then name:
//
//	{basePath}/
//	├── tex/
//	│   └── {name}/
//	│       ├── template.tex     # main file passed to pandoc --template
//	│       └── *.cls, *.sty     # side files copied next to it
//	├── typst/{name}/template.typ
//	├── jats/{name}/template.xml
//	└── docx/{name}/reference.docx
//
// A template directory is installed into the stage working directory so
// class and style files resolve during compilation.
//
// # Security
//
// Template names are validated to prevent path traversal.
// FilesystemLoader resolves symlinks and verifies paths stay within basePath.
package templates

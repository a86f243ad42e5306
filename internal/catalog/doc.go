// Package catalog refines introspected column descriptors with CUE overlays.
//
// The store reports every column as sortable, labelled by its name, with a
// kind derived from the declared type. A catalog directory lets operators
// relabel columns, mark them unsortable, correct their kind or hide them:
//
//	table: projects: {
//		label: "Projects"
//		columns: {
//			status: {label: "ステータス"}
//			due:    {kind: "DATE"}
//			notes:  {hidden: true}
//		}
//	}
//
// Overlay structs are closed; unknown fields and unknown kinds fail to load.
package catalog

package grid

import (
	"bufio"
	"fmt"
	"io"
)

// vtkVoxel is the VTK cell type of an axis-aligned hexahedron.
const vtkVoxel = 11

// voxelCorners lists corner offsets in VTK_VOXEL order.
var voxelCorners = [8][3]float64{
	{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
}

// WriteSnapshot implements sim.Engine as an ASCII VTK XML UnstructuredGrid
// with one voxel per active cell and f, p, u as cell data.
func (g *Grid) WriteSnapshot(w io.Writer, t float64) error {
	if g.n == 0 {
		return ErrNoGrid
	}
	ids := g.activeIDs()
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, `<?xml version="1.0"?>`)
	fmt.Fprintln(bw, `<VTKFile type="UnstructuredGrid" version="0.1" byte_order="LittleEndian">`)
	fmt.Fprintln(bw, `<UnstructuredGrid>`)
	fmt.Fprintln(bw, `<FieldData>`)
	fmt.Fprintf(bw, "<DataArray type=\"Float64\" Name=\"TIME\" NumberOfTuples=\"1\" format=\"ascii\">%g</DataArray>\n", t)
	fmt.Fprintln(bw, `</FieldData>`)
	fmt.Fprintf(bw, "<Piece NumberOfPoints=\"%d\" NumberOfCells=\"%d\">\n", 8*len(ids), len(ids))

	fmt.Fprintln(bw, `<Points>`)
	fmt.Fprintln(bw, `<DataArray type="Float64" NumberOfComponents="3" format="ascii">`)
	h := g.delta
	for _, id := range ids {
		c := &g.cells[id]
		x0, y0, z0 := c.X-h/2, c.Y-h/2, c.Z-h/2
		for _, o := range voxelCorners {
			fmt.Fprintf(bw, "%g %g %g\n", x0+o[0]*h, y0+o[1]*h, z0+o[2]*h)
		}
	}
	fmt.Fprintln(bw, `</DataArray>`)
	fmt.Fprintln(bw, `</Points>`)

	fmt.Fprintln(bw, `<Cells>`)
	fmt.Fprintln(bw, `<DataArray type="Int64" Name="connectivity" format="ascii">`)
	for a := range ids {
		base := 8 * a
		fmt.Fprintf(bw, "%d %d %d %d %d %d %d %d\n", base, base+1, base+2, base+3, base+4, base+5, base+6, base+7)
	}
	fmt.Fprintln(bw, `</DataArray>`)
	fmt.Fprintln(bw, `<DataArray type="Int64" Name="offsets" format="ascii">`)
	for a := range ids {
		fmt.Fprintln(bw, 8*(a+1))
	}
	fmt.Fprintln(bw, `</DataArray>`)
	fmt.Fprintln(bw, `<DataArray type="UInt8" Name="types" format="ascii">`)
	for range ids {
		fmt.Fprintln(bw, vtkVoxel)
	}
	fmt.Fprintln(bw, `</DataArray>`)
	fmt.Fprintln(bw, `</Cells>`)

	fmt.Fprintln(bw, `<CellData Scalars="f" Vectors="u">`)
	fmt.Fprintln(bw, `<DataArray type="Float64" Name="f" format="ascii">`)
	for _, id := range ids {
		fmt.Fprintf(bw, "%g\n", g.cells[id].F)
	}
	fmt.Fprintln(bw, `</DataArray>`)
	fmt.Fprintln(bw, `<DataArray type="Float64" Name="p" format="ascii">`)
	for _, id := range ids {
		fmt.Fprintf(bw, "%g\n", g.cells[id].P)
	}
	fmt.Fprintln(bw, `</DataArray>`)
	fmt.Fprintln(bw, `<DataArray type="Float64" Name="u" NumberOfComponents="3" format="ascii">`)
	for _, id := range ids {
		u := g.cells[id].U
		fmt.Fprintf(bw, "%g %g %g\n", u[0], u[1], u[2])
	}
	fmt.Fprintln(bw, `</DataArray>`)
	fmt.Fprintln(bw, `</CellData>`)

	fmt.Fprintln(bw, `</Piece>`)
	fmt.Fprintln(bw, `</UnstructuredGrid>`)
	fmt.Fprintln(bw, `</VTKFile>`)
	return bw.Flush()
}

package layout

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var errSVDFailed = errors.New("svd factorization failed")

// pcaLayout projects data onto its first dims principal components and scales
// the result like a spectral layout.
//
// PCA finds the directions along which the input vectors vary the most. Using
// the leading principal components as the starting layout keeps the global
// arrangement of the data, which the optimizer then refines locally.
//
// SVD is used instead of an eigendecomposition of the covariance matrix. For a
// centered data matrix X:
//   - X = U * Σ * V^T  (SVD decomposition)
//   - The columns of V are the principal components, ordered by variance captured
//   - Projecting data: X_projected = X * V[:, 0:k] gives the k-dimensional layout
func pcaLayout(data [][]float64, dims int, rng *rand.Rand) (*mat.Dense, error) {
	numberOfVectors := len(data)
	if numberOfVectors == 0 || len(data[0]) == 0 {
		return nil, ErrMissingData
	}
	embeddingDimension := len(data[0])

	// Step 1: Convert input vectors to a matrix format suitable for linear algebra operations
	dataMatrix, err := convertVectorsToMatrix(data, embeddingDimension)
	if err != nil {
		return nil, err
	}

	// Step 2: Center the data so the first component passes through the centroid
	centerDataMatrixBySubtractingColumnMeans(dataMatrix)

	// Step 3: Compute SVD and extract the leading principal components
	components, err := computePrincipalComponentsUsingSVD(dataMatrix, dims)
	if err != nil {
		return nil, err
	}

	// Step 4: Project the centered data onto the principal subspace
	var projected mat.Dense
	projected.Mul(dataMatrix, components)

	expand(&projected, rng)
	return &projected, nil
}

// convertVectorsToMatrix copies the rows of data into a gonum Dense matrix of
// shape (numberOfVectors x embeddingDimension).
func convertVectorsToMatrix(data [][]float64, embeddingDimension int) (*mat.Dense, error) {
	flattenedMatrixData := make([]float64, 0, len(data)*embeddingDimension)
	for rowIndex, vector := range data {
		if len(vector) != embeddingDimension {
			return nil, fmt.Errorf("row %d has %d components, want %d", rowIndex, len(vector), embeddingDimension)
		}
		flattenedMatrixData = append(flattenedMatrixData, vector...)
	}
	return mat.NewDense(len(data), embeddingDimension, flattenedMatrixData), nil
}

// centerDataMatrixBySubtractingColumnMeans modifies the matrix in-place to have
// zero mean for each column.
func centerDataMatrixBySubtractingColumnMeans(dataMatrix *mat.Dense) {
	numberOfVectors, embeddingDimension := dataMatrix.Dims()
	for columnIndex := 0; columnIndex < embeddingDimension; columnIndex++ {
		columnValues := mat.Col(nil, columnIndex, dataMatrix)
		columnMean := stat.Mean(columnValues, nil)
		for rowIndex := 0; rowIndex < numberOfVectors; rowIndex++ {
			dataMatrix.Set(rowIndex, columnIndex, columnValues[rowIndex]-columnMean)
		}
	}
}

// computePrincipalComponentsUsingSVD performs a thin SVD of the centered data
// and returns an (embeddingDimension x dims) matrix whose columns are the
// leading principal components. Components beyond the rank of the data are
// left as zero columns.
func computePrincipalComponentsUsingSVD(centeredDataMatrix *mat.Dense, dims int) (*mat.Dense, error) {
	var svdDecomposition mat.SVD
	if ok := svdDecomposition.Factorize(centeredDataMatrix, mat.SVDThin); !ok {
		return nil, errSVDFailed
	}

	var rightSingularVectors mat.Dense
	svdDecomposition.VTo(&rightSingularVectors)

	embeddingDimension, available := rightSingularVectors.Dims()
	principalComponentMatrix := mat.NewDense(embeddingDimension, dims, nil)
	for componentIndex := 0; componentIndex < min(dims, available); componentIndex++ {
		principalComponentMatrix.SetCol(componentIndex, mat.Col(nil, componentIndex, &rightSingularVectors))
	}
	return principalComponentMatrix, nil
}
